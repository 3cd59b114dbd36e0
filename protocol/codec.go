package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/apmflow/rebalance/types"
)

// Subprotocol versions. V4 is selected for a round only when every member's
// prior assignment already reports V4.
const (
	V3 int16 = 3
	V4 int16 = 4
)

// MaxMessageSize bounds a single encoded message.
const MaxMessageSize = 4 * 1024 * 1024 // 4MB

// Message kinds.
const (
	kindWorkerState byte = 0x01
	kindAssignment  byte = 0x02
)

// Wire layout:
//
//	Length(4) | Kind(1) | Payload | Checksum(8)
//
// Length counts everything after the length field. The checksum is
// xxh3(kind + payload).
const (
	lengthSize   = 4
	kindSize     = 1
	checksumSize = 8
)

// SerializeAssignment encodes an assignment into a standalone byte slice.
//
// Parameters:
//   - assignment: Assignment to encode
//
// Returns:
//   - []byte: Encoded message
//   - error: Version validation or size failure
func SerializeAssignment(assignment *types.Assignment) ([]byte, error) {
	if err := validateVersion(assignment.Version); err != nil {
		return nil, err
	}

	payloadSize := assignmentSize(assignment)
	buf, err := newMessage(kindAssignment, payloadSize)
	if err != nil {
		return nil, err
	}

	marshalAssignment(buf, lengthSize+kindSize, assignment)
	sealMessage(buf)

	return buf, nil
}

// EncodeAssignment encodes an assignment to the writer using a pooled
// scratch buffer.
//
// Parameters:
//   - w: Destination writer
//   - assignment: Assignment to encode
//
// Returns:
//   - error: Validation, size, or write failure
func EncodeAssignment(w io.Writer, assignment *types.Assignment) error {
	if err := validateVersion(assignment.Version); err != nil {
		return err
	}

	total := lengthSize + kindSize + assignmentSize(assignment) + checksumSize
	if total > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLarge, total, MaxMessageSize)
	}

	buf := GetBuffer(total)
	defer PutBuffer(buf)

	binary.BigEndian.PutUint32(buf, uint32(total-lengthSize))
	buf[lengthSize] = kindAssignment
	marshalAssignment(buf, lengthSize+kindSize, assignment)
	sealMessage(buf[:total])

	_, err := w.Write(buf[:total])

	return err
}

// DeserializeAssignment decodes an assignment message.
//
// Parameters:
//   - data: Encoded message bytes
//
// Returns:
//   - *types.Assignment: Decoded assignment
//   - error: Truncation, checksum, kind, or version failure
func DeserializeAssignment(data []byte) (*types.Assignment, error) {
	payload, kind, err := openMessage(data)
	if err != nil {
		return nil, err
	}
	if kind != kindAssignment {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownKind, kind)
	}

	r := &reader{buf: payload}
	assignment := unmarshalAssignment(r)
	if r.err != nil {
		return nil, r.err
	}
	if err := validateVersion(assignment.Version); err != nil {
		return nil, err
	}

	return assignment, nil
}

// SerializeWorkerState encodes a member's metadata into a standalone byte
// slice. The prior assignment is nested as a complete assignment message.
//
// Parameters:
//   - state: Member metadata to encode
//
// Returns:
//   - []byte: Encoded message
//   - error: Size failure
func SerializeWorkerState(state *types.WorkerState) ([]byte, error) {
	prior, err := serializeAnyVersionAssignment(&state.Assignment)
	if err != nil {
		return nil, err
	}

	payloadSize := stringSize(state.URL) + 8 + 4 + len(prior)
	buf, err := newMessage(kindWorkerState, payloadSize)
	if err != nil {
		return nil, err
	}

	offset := lengthSize + kindSize
	offset = putString(buf, offset, state.URL)
	binary.BigEndian.PutUint64(buf[offset:], uint64(state.Offset))
	offset += 8
	binary.BigEndian.PutUint32(buf[offset:], uint32(len(prior)))
	offset += 4
	copy(buf[offset:], prior)
	sealMessage(buf)

	return buf, nil
}

// EncodeWorkerState encodes member metadata to the writer using a pooled
// scratch buffer.
func EncodeWorkerState(w io.Writer, state *types.WorkerState) error {
	data, err := SerializeWorkerState(state)
	if err != nil {
		return err
	}

	buf := GetBuffer(len(data))
	defer PutBuffer(buf)
	n := copy(buf, data)

	_, err = w.Write(buf[:n])

	return err
}

// DeserializeWorkerState decodes a member metadata message.
//
// Parameters:
//   - data: Encoded message bytes
//
// Returns:
//   - *types.WorkerState: Decoded member metadata
//   - error: Truncation, checksum, or kind failure
func DeserializeWorkerState(data []byte) (*types.WorkerState, error) {
	payload, kind, err := openMessage(data)
	if err != nil {
		return nil, err
	}
	if kind != kindWorkerState {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownKind, kind)
	}

	r := &reader{buf: payload}
	state := &types.WorkerState{}
	state.URL = r.str()
	state.Offset = int64(r.u64())
	priorLen := int(r.u32())
	prior := r.bytes(priorLen)
	if r.err != nil {
		return nil, r.err
	}

	priorPayload, priorKind, err := openMessage(prior)
	if err != nil {
		return nil, fmt.Errorf("prior assignment: %w", err)
	}
	if priorKind != kindAssignment {
		return nil, fmt.Errorf("prior assignment: %w: 0x%02x", ErrUnknownKind, priorKind)
	}

	pr := &reader{buf: priorPayload}
	assignment := unmarshalAssignment(pr)
	if pr.err != nil {
		return nil, fmt.Errorf("prior assignment: %w", pr.err)
	}
	state.Assignment = *assignment

	return state, nil
}

// serializeAnyVersionAssignment encodes without version validation. A fresh
// member's prior assignment is the zero value with version 0.
func serializeAnyVersionAssignment(assignment *types.Assignment) ([]byte, error) {
	payloadSize := assignmentSize(assignment)
	buf, err := newMessage(kindAssignment, payloadSize)
	if err != nil {
		return nil, err
	}

	marshalAssignment(buf, lengthSize+kindSize, assignment)
	sealMessage(buf)

	return buf, nil
}

func validateVersion(version int16) error {
	if version != V3 && version != V4 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	return nil
}

// newMessage allocates a full message buffer and writes the length header.
func newMessage(kind byte, payloadSize int) ([]byte, error) {
	total := lengthSize + kindSize + payloadSize + checksumSize
	if total > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLarge, total, MaxMessageSize)
	}

	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf, uint32(total-lengthSize))
	buf[lengthSize] = kind

	return buf, nil
}

// sealMessage computes and appends the checksum over kind + payload.
func sealMessage(buf []byte) {
	body := buf[lengthSize : len(buf)-checksumSize]
	binary.BigEndian.PutUint64(buf[len(buf)-checksumSize:], xxh3.Hash(body))
}

// openMessage validates the envelope and returns the payload and kind.
func openMessage(data []byte) (payload []byte, kind byte, err error) {
	if len(data) < lengthSize+kindSize+checksumSize {
		return nil, 0, ErrTruncated
	}

	length := binary.BigEndian.Uint32(data)
	if int(length) != len(data)-lengthSize {
		return nil, 0, ErrTruncated
	}
	if len(data) > MaxMessageSize {
		return nil, 0, fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLarge, len(data), MaxMessageSize)
	}

	body := data[lengthSize : len(data)-checksumSize]
	want := binary.BigEndian.Uint64(data[len(data)-checksumSize:])
	if xxh3.Hash(body) != want {
		return nil, 0, ErrChecksumMismatch
	}

	return body[kindSize:], body[0], nil
}

// assignmentSize returns the payload size of an encoded assignment.
func assignmentSize(a *types.Assignment) int {
	size := 2 + 2 // version + error
	size += stringSize(a.LeaderID)
	size += stringSize(a.LeaderURL)
	size += 8 // config offset
	size += 4
	for _, c := range a.Connectors {
		size += stringSize(c)
	}
	size += 4
	for _, t := range a.Tasks {
		size += taskIDSize(t)
	}
	size += 4
	for _, c := range a.RevokedConnectors {
		size += stringSize(c)
	}
	size += 4
	for _, t := range a.RevokedTasks {
		size += taskIDSize(t)
	}
	size += 4 // delay millis

	return size
}

// marshalAssignment writes the assignment payload at offset and returns the
// new offset.
func marshalAssignment(buf []byte, offset int, a *types.Assignment) int {
	binary.BigEndian.PutUint16(buf[offset:], uint16(a.Version))
	offset += 2
	binary.BigEndian.PutUint16(buf[offset:], uint16(a.Error))
	offset += 2
	offset = putString(buf, offset, a.LeaderID)
	offset = putString(buf, offset, a.LeaderURL)
	binary.BigEndian.PutUint64(buf[offset:], uint64(a.ConfigOffset))
	offset += 8

	binary.BigEndian.PutUint32(buf[offset:], uint32(len(a.Connectors)))
	offset += 4
	for _, c := range a.Connectors {
		offset = putString(buf, offset, c)
	}

	binary.BigEndian.PutUint32(buf[offset:], uint32(len(a.Tasks)))
	offset += 4
	for _, t := range a.Tasks {
		offset = putTaskID(buf, offset, t)
	}

	binary.BigEndian.PutUint32(buf[offset:], uint32(len(a.RevokedConnectors)))
	offset += 4
	for _, c := range a.RevokedConnectors {
		offset = putString(buf, offset, c)
	}

	binary.BigEndian.PutUint32(buf[offset:], uint32(len(a.RevokedTasks)))
	offset += 4
	for _, t := range a.RevokedTasks {
		offset = putTaskID(buf, offset, t)
	}

	binary.BigEndian.PutUint32(buf[offset:], uint32(a.Delay.Milliseconds()))
	offset += 4

	return offset
}

// unmarshalAssignment reads an assignment payload. Errors accumulate on the
// reader.
func unmarshalAssignment(r *reader) *types.Assignment {
	a := &types.Assignment{}
	a.Version = int16(r.u16())
	a.Error = types.AssignmentError(r.u16())
	a.LeaderID = r.str()
	a.LeaderURL = r.str()
	a.ConfigOffset = int64(r.u64())

	a.Connectors = r.strings()
	a.Tasks = r.taskIDs()
	a.RevokedConnectors = r.strings()
	a.RevokedTasks = r.taskIDs()

	a.Delay = time.Duration(r.u32()) * time.Millisecond

	return a
}

func stringSize(s string) int {
	return 2 + len(s)
}

func taskIDSize(t types.TaskID) int {
	return stringSize(t.Connector) + 4
}

func putString(buf []byte, offset int, s string) int {
	if len(s) > math.MaxUint16 {
		// Callers size the buffer from stringSize, so an oversized string
		// would already have corrupted the layout. Truncate defensively is
		// not an option; IDs and URLs this long are a caller bug.
		panic(ErrStringTooLong)
	}
	binary.BigEndian.PutUint16(buf[offset:], uint16(len(s)))
	offset += 2
	copy(buf[offset:], s)

	return offset + len(s)
}

func putTaskID(buf []byte, offset int, t types.TaskID) int {
	offset = putString(buf, offset, t.Connector)
	binary.BigEndian.PutUint32(buf[offset:], uint32(t.Task))

	return offset + 4
}

// reader walks a payload tracking the first error encountered. After an
// error, every read returns a zero value.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) fail() {
	if r.err == nil {
		r.err = ErrTruncated
	}
}

func (r *reader) u16() uint16 {
	if r.err != nil || r.off+2 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2

	return v
}

func (r *reader) u32() uint32 {
	if r.err != nil || r.off+4 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4

	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil || r.off+8 > len(r.buf) {
		r.fail()
		return 0
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8

	return v
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil || n < 0 || r.off+n > len(r.buf) {
		r.fail()
		return nil
	}
	v := r.buf[r.off : r.off+n]
	r.off += n

	return v
}

func (r *reader) str() string {
	n := int(r.u16())

	return string(r.bytes(n))
}

func (r *reader) taskID() types.TaskID {
	connector := r.str()
	task := int(r.u32())

	return types.TaskID{Connector: connector, Task: task}
}

func (r *reader) strings() []string {
	n := int(r.u32())
	if r.err != nil || n > len(r.buf)-r.off {
		r.fail()
		return []string{}
	}
	values := make([]string, 0, n)
	for range n {
		values = append(values, r.str())
	}

	return values
}

func (r *reader) taskIDs() []types.TaskID {
	n := int(r.u32())
	if r.err != nil || n > len(r.buf)-r.off {
		r.fail()
		return []types.TaskID{}
	}
	values := make([]types.TaskID, 0, n)
	for range n {
		values = append(values, r.taskID())
	}

	return values
}
