/*
Package shm implements the shared state segment and its lifecycle.

# Layout

The segment is one 4096-byte page named /rtdcs_shared_state:

	0x00  magic                  uint32  "LITO", stamped once at creation
	0x08  temperature            float64 written by the owner
	0x10  temperatureTimestamp   float64 written by the owner
	0x18  sampleCount            uint32  written by the owner
	0x20  compensationX          float64 written by the writer role
	0x28  compensationY          float64 written by the writer role
	0x30  compensationTimestamp  float64 written by the writer role
	0x38  reserved               padding up to 4096

Every scalar is loaded and stored atomically, so a reader never sees a torn
field. Multi-field reads carry no consistency guarantee.

# Roles

	pending, err := shm.CreateOrRecover(shm.SegmentName, shm.SegmentSize)
	seg, err := pending.Initialize()   // owner
	defer seg.Destroy()

	ro, err := shm.AttachReadOnly(shm.SegmentName, shm.SegmentSize)   // reader
	defer ro.Detach()

	rw, err := shm.AttachReadWrite(shm.SegmentName, shm.SegmentSize)  // writer
	defer rw.Detach()

Only the owner unlinks the name. Detach and Destroy are idempotent and never
return an error.
*/
package shm
