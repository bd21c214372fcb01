// Command wsclient connects to a WebSocket server, sends every line read
// from stdin as a text message and prints every message received.
//
//	wsclient [-config options.yaml] ws://localhost:8080/echo
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/wessendorf/websocket"
)

func main() {
	log.SetFlags(0)

	err := run()
	if err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML options file")
	verbose := flag.Bool("v", false, "log connection lifecycle")
	flag.Parse()

	if flag.NArg() != 1 {
		return errors.New("please provide a ws:// or wss:// URL as the only argument")
	}

	opts := &websocket.Options{}
	if *configPath != "" {
		var err error
		opts, err = websocket.LoadOptions(*configPath)
		if err != nil {
			return err
		}
	}
	if *verbose {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	cl, err := websocket.NewClient(flag.Arg(0), opts)
	if err != nil {
		return err
	}

	var closeErr error
	cl.SetHandler(websocket.HandlerFuncs{
		Text: func(msg string) {
			fmt.Println(msg)
		},
		Binary: func(msg []byte) {
			fmt.Print(hex.Dump(msg))
		},
		Error: func(err error) {
			closeErr = err
		},
		Close: func(code websocket.StatusCode, reason string) {
			log.Printf("closed: %v %q", code, reason)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = cl.Connect(ctx)
	if err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		s := bufio.NewScanner(os.Stdin)
		for s.Scan() {
			lines <- s.Text()
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-cl.Conn().Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			err = cl.SendText(line)
			if err != nil {
				return err
			}
		}
	}

	err = cl.Close()
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	err = cl.Wait(waitCtx)
	if err != nil {
		return err
	}
	return closeErr
}
