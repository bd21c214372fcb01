package websocket

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"math/bits"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/gobwas/ws"

	"github.com/wessendorf/websocket/internal/test/assert"
	"github.com/wessendorf/websocket/internal/test/xrand"
)

func TestHeader(t *testing.T) {
	t.Parallel()

	t.Run("lengths", func(t *testing.T) {
		t.Parallel()

		lengths := []int{
			124,
			125,
			126,
			127,

			65534,
			65535,
			65536,
			65537,
		}

		for _, n := range lengths {
			n := n
			t.Run(strconv.Itoa(n), func(t *testing.T) {
				t.Parallel()

				testHeader(t, header{
					payloadLength: int64(n),
				})
			})
		}
	})

	t.Run("fuzz", func(t *testing.T) {
		t.Parallel()

		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		randBool := func() bool {
			return r.Intn(2) == 0
		}

		for i := 0; i < 10000; i++ {
			h := header{
				fin:    randBool(),
				rsv1:   randBool(),
				rsv2:   randBool(),
				rsv3:   randBool(),
				opcode: opcode(r.Intn(16)),

				masked:        randBool(),
				maskKey:       r.Uint32(),
				payloadLength: r.Int63(),
			}
			if !h.masked {
				h.maskKey = 0
			}

			testHeader(t, h)
		}
	})

	t.Run("msbLength", func(t *testing.T) {
		t.Parallel()

		b := []byte{0x82, 127, 0x80, 0, 0, 0, 0, 0, 0, 1}
		_, err := readFrameHeader(bufio.NewReader(bytes.NewReader(b)), make([]byte, 8))
		assert.ErrorIs(t, ErrProtocolViolation, err)
	})
}

func testHeader(t *testing.T, h header) {
	b := &bytes.Buffer{}
	w := bufio.NewWriter(b)
	r := bufio.NewReader(b)

	err := writeFrameHeader(h, w, make([]byte, maxHeaderSize))
	assert.Success(t, err)

	err = w.Flush()
	assert.Success(t, err)

	h2, err := readFrameHeader(r, make([]byte, 8))
	assert.Success(t, err)

	assert.Equal(t, "read header", h, h2)
}

func TestFrame(t *testing.T) {
	t.Parallel()

	opcodes := []opcode{
		opContinuation,
		opText,
		opBinary,
		opClose,
		opPing,
		opPong,
	}
	lengths := []int{0, 1, 125, 126, 65535, 65536}

	for _, op := range opcodes {
		for _, n := range lengths {
			for _, masked := range []bool{false, true} {
				op, n, masked := op, n, masked
				name := op.String() + "/" + strconv.Itoa(n) + "/masked=" + strconv.FormatBool(masked)
				t.Run(name, func(t *testing.T) {
					t.Parallel()

					p := xrand.Bytes(n)
					h := header{
						fin:    true,
						opcode: op,
						masked: masked,
					}
					if masked {
						h.maskKey = rand.Uint32()
					}

					b, err := encodeFrame(h, p)
					if op.controlOp() && n > maxControlPayload {
						assert.ErrorIs(t, ErrInvalidControlFrame, err)
						return
					}
					assert.Success(t, err)

					if masked && n > 4 {
						if bytes.Equal(b[len(b)-n:], p) {
							t.Fatal("payload was not masked")
						}
					}

					h.payloadLength = int64(n)
					h2, p2, err := readFrame(bufio.NewReader(bytes.NewReader(b)), make([]byte, 8), 1<<20)
					assert.Success(t, err)
					assert.Equal(t, "header", h, h2)
					assert.Equal(t, "payload", p, p2)
				})
			}
		}
	}
}

func TestFrameVerify(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		h    header
		p    []byte
		exp  error
	}{
		{
			name: "rsv1",
			h:    header{fin: true, rsv1: true, opcode: opText},
			exp:  ErrProtocolViolation,
		},
		{
			name: "rsv3",
			h:    header{fin: true, rsv3: true, opcode: opBinary},
			exp:  ErrProtocolViolation,
		},
		{
			name: "reservedOpcode",
			h:    header{fin: true, opcode: 3},
			exp:  ErrProtocolViolation,
		},
		{
			name: "reservedControlOpcode",
			h:    header{fin: true, opcode: 11},
			exp:  ErrProtocolViolation,
		},
		{
			name: "fragmentedPing",
			h:    header{opcode: opPing},
			exp:  ErrInvalidControlFrame,
		},
		{
			name: "bigClose",
			h:    header{fin: true, opcode: opClose},
			p:    make([]byte, maxControlPayload+1),
			exp:  ErrInvalidControlFrame,
		},
		{
			name: "fragmentedText",
			h:    header{opcode: opText},
			p:    []byte("x"),
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := encodeFrame(tc.h, tc.p)
			if tc.exp == nil {
				assert.Success(t, err)
				return
			}
			assert.ErrorIs(t, tc.exp, err)

			tc.h.payloadLength = int64(len(tc.p))
			b := appendFrameHeader(nil, tc.h)
			b = append(b, tc.p...)
			_, _, err = readFrame(bufio.NewReader(bytes.NewReader(b)), make([]byte, 8), 1<<20)
			assert.ErrorIs(t, tc.exp, err)
		})
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	t.Parallel()

	b := appendFrameHeader(nil, header{
		fin:           true,
		opcode:        opBinary,
		payloadLength: 1 << 40,
	})
	_, _, err := readFrame(bufio.NewReader(bytes.NewReader(b)), make([]byte, 8), 1024)
	assert.ErrorIs(t, ErrFrameTooLarge, err)
}

func TestFrameGobwas(t *testing.T) {
	t.Parallel()

	t.Run("encode", func(t *testing.T) {
		t.Parallel()

		for _, n := range []int{0, 7, 125, 126, 70000} {
			p := xrand.Bytes(n)
			b, err := encodeFrame(header{
				fin:     true,
				opcode:  opBinary,
				masked:  true,
				maskKey: rand.Uint32(),
			}, p)
			assert.Success(t, err)

			f, err := ws.ReadFrame(bytes.NewReader(b))
			assert.Success(t, err)
			assert.Equal(t, "fin", true, f.Header.Fin)
			assert.Equal(t, "opcode", ws.OpBinary, f.Header.OpCode)
			assert.Equal(t, "masked", true, f.Header.Masked)

			ws.Cipher(f.Payload, f.Header.Mask, 0)
			assert.Equal(t, "payload", p, f.Payload)
		}
	})

	t.Run("decode", func(t *testing.T) {
		t.Parallel()

		for _, n := range []int{0, 7, 125, 126, 70000} {
			p := xrand.Bytes(n)
			b := &bytes.Buffer{}
			err := ws.WriteFrame(b, ws.NewFrame(ws.OpText, false, p))
			assert.Success(t, err)

			h, p2, err := readFrame(bufio.NewReader(b), make([]byte, 8), 1<<20)
			assert.Success(t, err)
			assert.Equal(t, "header", header{
				opcode:        opText,
				payloadLength: int64(n),
			}, h)
			assert.Equal(t, "payload", p, p2)
		}
	})
}

func Test_mask(t *testing.T) {
	t.Parallel()

	key := []byte{0xa, 0xb, 0xc, 0xff}
	key32 := binary.LittleEndian.Uint32(key)
	p := []byte{0xa, 0xb, 0xc, 0xf2, 0xc}
	gotKey32 := mask(key32, p)

	expP := []byte{0, 0, 0, 0x0d, 0x6}
	assert.Equal(t, "p", expP, p)

	expKey32 := bits.RotateLeft32(key32, -8)
	assert.Equal(t, "key32", expKey32, gotKey32)
}

func TestMaskCipher(t *testing.T) {
	t.Parallel()

	for i := 0; i < 1000; i++ {
		var key [4]byte
		copy(key[:], xrand.Bytes(4))

		p := xrand.Bytes(xrand.Int(300))
		exp := append([]byte(nil), p...)
		ws.Cipher(exp, key, 0)

		mask(binary.LittleEndian.Uint32(key[:]), p)
		assert.Equal(t, "masked payload", exp, p)
	}
}

func basicMask(maskKey [4]byte, pos int, b []byte) int {
	for i := range b {
		b[i] ^= maskKey[pos&3]
		pos++
	}
	return pos & 3
}

func Benchmark_mask(b *testing.B) {
	sizes := []int{
		2,
		3,
		4,
		8,
		16,
		32,
		128,
		512,
		4096,
		16384,
	}

	fns := []struct {
		name string
		fn   func(b *testing.B, key [4]byte, p []byte)
	}{
		{
			name: "basic",
			fn: func(b *testing.B, key [4]byte, p []byte) {
				for i := 0; i < b.N; i++ {
					basicMask(key, 0, p)
				}
			},
		},
		{
			name: "word",
			fn: func(b *testing.B, key [4]byte, p []byte) {
				key32 := binary.LittleEndian.Uint32(key[:])
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					mask(key32, p)
				}
			},
		},
		{
			name: "gobwas",
			fn: func(b *testing.B, key [4]byte, p []byte) {
				for i := 0; i < b.N; i++ {
					ws.Cipher(p, key, 0)
				}
			},
		},
	}

	key := [4]byte{1, 2, 3, 4}

	for _, size := range sizes {
		p := make([]byte, size)

		b.Run(strconv.Itoa(size), func(b *testing.B) {
			for _, fn := range fns {
				b.Run(fn.name, func(b *testing.B) {
					b.SetBytes(int64(size))

					fn.fn(b, key, p)
				})
			}
		})
	}
}
