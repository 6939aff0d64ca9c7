// Package testutil provides WASM fixtures and on-disk registry builders for
// tests across wasmship packages.
package testutil

// AddWASM exports add(i32, i32) -> i32.
var AddWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	// Type section: (i32, i32) -> i32
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	// Function section: func 0 uses type 0
	0x03, 0x02, 0x01, 0x00,
	// Export section: "add" -> func 0
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00,
	// Code section: local.get 0 + local.get 1 = i32.add
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

// MultiWASM exports:
//
//	add(i32, i32) -> i32
//	bump() -> i32     increments the i32 at memory[0] and returns it
//	boom()            traps with unreachable
//	wide(i64) -> i64  identity, outside the supported value types
//	memory            one page of linear memory
var MultiWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	// Type section: 4 types
	0x01, 0x13, 0x04,
	0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, // t0: (i32, i32) -> i32
	0x60, 0x00, 0x01, 0x7f, // t1: () -> i32
	0x60, 0x00, 0x00, // t2: () -> ()
	0x60, 0x01, 0x7e, 0x01, 0x7e, // t3: (i64) -> i64
	// Function section: types 0, 1, 2, 3
	0x03, 0x05, 0x04, 0x00, 0x01, 0x02, 0x03,
	// Memory section: min 1 page
	0x05, 0x03, 0x01, 0x00, 0x01,
	// Export section: 5 exports
	0x07, 0x25, 0x05,
	0x03, 0x61, 0x64, 0x64, 0x00, 0x00, // "add" func 0
	0x04, 0x62, 0x75, 0x6d, 0x70, 0x00, 0x01, // "bump" func 1
	0x04, 0x62, 0x6f, 0x6f, 0x6d, 0x00, 0x02, // "boom" func 2
	0x04, 0x77, 0x69, 0x64, 0x65, 0x00, 0x03, // "wide" func 3
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00, // "memory" memory 0
	// Code section: 4 bodies
	0x0a, 0x27, 0x04,
	// add: local.get 0, local.get 1, i32.add
	0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
	// bump: mem[0] = mem[0] + 1; return mem[0]
	0x14, 0x00,
	0x41, 0x00, // i32.const 0 (store address)
	0x41, 0x00, // i32.const 0
	0x28, 0x02, 0x00, // i32.load
	0x41, 0x01, // i32.const 1
	0x6a,             // i32.add
	0x36, 0x02, 0x00, // i32.store
	0x41, 0x00, // i32.const 0
	0x28, 0x02, 0x00, // i32.load
	0x0b,
	// boom: unreachable
	0x03, 0x00, 0x00, 0x0b,
	// wide: local.get 0
	0x04, 0x00, 0x20, 0x00, 0x0b,
}

// InvalidWASM has a valid header and a truncated section.
var InvalidWASM = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60,
}

// SpinWASM exports spin(), which loops forever.
var SpinWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	// Type section: () -> ()
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	// Function section
	0x03, 0x02, 0x01, 0x00,
	// Export section: "spin" -> func 0
	0x07, 0x08, 0x01, 0x04, 0x73, 0x70, 0x69, 0x6e, 0x00, 0x00,
	// Code section: loop br 0 end
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x03, 0x40, 0x0c, 0x00, 0x0b, 0x0b,
}
