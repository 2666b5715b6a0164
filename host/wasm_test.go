package host

import (
	"encoding/binary"
)

// Minimal wasm binary encoding for test guests.

func uleb(n uint32) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func section(id byte, body []byte) []byte {
	out := append([]byte{id}, uleb(uint32(len(body)))...)
	return append(out, body...)
}

func i32Types(n int) []byte {
	out := uleb(uint32(n))
	for i := 0; i < n; i++ {
		out = append(out, 0x7f)
	}
	return out
}

func funcType(params, results int) []byte {
	out := append([]byte{0x60}, i32Types(params)...)
	return append(out, i32Types(results)...)
}

func code(locals int, body ...byte) []byte {
	var entry []byte
	if locals > 0 {
		entry = append(entry, 0x01)
		entry = append(entry, uleb(uint32(locals))...)
		entry = append(entry, 0x7f)
	} else {
		entry = append(entry, 0x00)
	}
	entry = append(entry, body...)
	entry = append(entry, 0x0b)
	return append(uleb(uint32(len(entry))), entry...)
}

func header() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d}
	return binary.LittleEndian.AppendUint32(out, 1)
}

// guestWasm builds an addon that:
//   - registers by returning a "hello" string created from its data segment
//   - stores the data argument of napi_finalize at address 0
//   - exports make_obj(env) -> value, which calls create_object
func guestWasm() []byte {
	out := header()

	out = append(out, section(1, vec(
		funcType(3, 2), // 0: create_string_utf8
		funcType(2, 1), // 1: register
		funcType(3, 0), // 2: finalize
		funcType(1, 1), // 3: make_obj
		funcType(1, 2), // 4: create_object
	))...)

	out = append(out, section(2, vec(
		append(append(name("napi"), name("create_string_utf8")...), 0x00, 0x00),
		append(append(name("napi"), name("create_object")...), 0x00, 0x04),
	))...)

	out = append(out, section(3, vec([]byte{0x01}, []byte{0x02}, []byte{0x03}))...)

	out = append(out, section(5, vec([]byte{0x00, 0x01}))...)

	out = append(out, section(7, vec(
		append(name("memory"), 0x02, 0x00),
		append(name(registerExport), 0x00, 0x02),
		append(name(finalizeExport), 0x00, 0x03),
		append(name("make_obj"), 0x00, 0x04),
	))...)

	out = append(out, section(10, vec(
		// register(env, exports): create_string_utf8(env, 16, 5), keep the value
		code(1,
			0x20, 0x00,
			0x41, 0x10,
			0x41, 0x05,
			0x10, 0x00,
			0x21, 0x02,
			0x1a,
			0x20, 0x02,
		),
		// finalize(cb, data, hint): i32.store(0, data)
		code(0,
			0x41, 0x00,
			0x20, 0x01,
			0x36, 0x02, 0x00,
		),
		// make_obj(env): create_object(env), keep the value
		code(1,
			0x20, 0x00,
			0x10, 0x01,
			0x21, 0x01,
			0x1a,
			0x20, 0x01,
		),
	))...)

	data := []byte{0x00, 0x41, 0x10, 0x0b}
	data = append(data, name("hello")...)
	out = append(out, section(11, vec(data))...)
	return out
}

// emptyWasm is a valid module with no exports.
func emptyWasm() []byte { return header() }
