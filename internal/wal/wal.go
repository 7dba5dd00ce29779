// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wal implements the write-ahead log: append before applying to
// the active segment, replay on startup. Frame layout: body_length |
// checksum | entry_type | collection_name | point_id | named_vec_count |
// [[vec_name, dim, data], ...].
//
// An entry is committed once its checksum validates, replay reapplies
// entries in file order, and idempotence falls out of point-id-keyed
// upsert (replaying the same insert twice just overwrites the same point
// again).
package wal

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spaolacci/murmur3"
	"github.com/spf13/afero"

	"github.com/jerryli99/vectordb/internal/merr"
	"github.com/jerryli99/vectordb/internal/vectortypes"
)

// EntryType tags a WAL frame's kind; only Insert is produced today (there
// is no delete/update on points), but the wire format reserves the other
// two values.
type EntryType uint8

const (
	EntryInsert EntryType = iota
	EntryDelete
	EntryUpdate
)

// Entry is one decoded WAL record.
type Entry struct {
	Type           EntryType
	CollectionName string
	PointId        vectortypes.PointId
	Vectors        map[vectortypes.VectorName]vectortypes.Vector
}

// TruncateMode selects how much of the log Truncate discards.
type TruncateMode int

const (
	TruncateFull TruncateMode = iota
	TruncateKeepLastN
)

// WAL is a single append-only log file, one per collection. Writers are
// serialized with an in-process mutex and, since the log directory may be
// shared with another process instance, a cross-process file lock guards
// the actual append so two processes never interleave writes.
type WAL struct {
	mu       sync.Mutex
	fs       afero.Fs
	path     string
	lockPath string
	flock    *flock.Flock
	entries  int // count of entries appended this session
}

// Open opens (creating if absent) the WAL file at path on fs.
func Open(fs afero.Fs, path string) (*WAL, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, merr.Wrapf(err, "create wal dir for %s", path)
	}
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, merr.Wrapf(err, "open wal file %s", path)
	}
	f.Close()

	return &WAL{
		fs:       fs,
		path:     path,
		lockPath: path + ".lock",
		flock:    flock.New(path + ".lock"),
	}, nil
}

// Append serializes entry and appends it to the log, fsync-ing before
// returning so a crash after Append always has the entry durable.
func (w *WAL) Append(entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	locked, err := w.flock.TryLock()
	if err != nil {
		return merr.Wrapf(merr.ErrLockTimeout, "wal lock: %v", err)
	}
	if !locked {
		return merr.Wrap(merr.ErrLockTimeout, "wal already locked by another process")
	}
	defer w.flock.Unlock()

	frame := encodeEntry(entry)

	f, err := w.fs.OpenFile(w.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return merr.Wrapf(err, "open wal for append %s", w.path)
	}
	defer f.Close()

	if _, err := f.Write(frame); err != nil {
		return merr.Wrapf(err, "append wal entry")
	}
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			return merr.Wrapf(err, "fsync wal")
		}
	}
	w.entries++
	return nil
}

// Replay reads every entry from the log in file order. A corrupt trailing
// frame (partial write from a crash mid-append) stops replay but does not
// error out the entries read so far, matching "the safe thing the
// original's doc comment implies: restore what you can, resume clean."
func (w *WAL) Replay() ([]Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.fs.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, merr.Wrapf(err, "open wal for replay %s", w.path)
	}
	defer f.Close()

	var out []Entry
	r := bufio.NewReader(f)
	for {
		entry, ok, err := decodeEntry(r)
		if err != nil {
			return out, nil // stop at first corrupt/partial frame
		}
		if !ok {
			break
		}
		out = append(out, entry)
	}
	return out, nil
}

// Truncate discards log content per mode. TruncateFull empties the file;
// TruncateKeepLastN keeps only the last keepLastN entries (used after a
// checkpoint has persisted everything older durably elsewhere).
func (w *WAL) Truncate(mode TruncateMode, keepLastN int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if mode == TruncateFull {
		f, err := w.fs.OpenFile(w.path, os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return merr.Wrapf(err, "truncate wal %s", w.path)
		}
		return f.Close()
	}

	f, err := w.fs.Open(w.path)
	if err != nil {
		return merr.Wrapf(err, "open wal for truncate %s", w.path)
	}
	var all []Entry
	r := bufio.NewReader(f)
	for {
		entry, ok, derr := decodeEntry(r)
		if derr != nil || !ok {
			break
		}
		all = append(all, entry)
	}
	f.Close()

	if keepLastN < len(all) {
		all = all[len(all)-keepLastN:]
	}

	tmp := w.path + ".tmp"
	out, err := w.fs.Create(tmp)
	if err != nil {
		return merr.Wrapf(err, "create wal truncate tmp %s", tmp)
	}
	for _, e := range all {
		if _, err := out.Write(encodeEntry(e)); err != nil {
			out.Close()
			return merr.Wrap(err, "write truncated wal entry")
		}
	}
	out.Close()

	return w.fs.Rename(tmp, w.path)
}

// encodeEntry builds the on-disk frame:
// bodyLen(4) | checksum(8) | type(1) | collNameLen(4) | collName | pointIdLen(4) | pointId |
// vecCount(4) | [nameLen(4) name dim(4) data(4*dim)]...
func encodeEntry(e Entry) []byte {
	var body []byte
	body = append(body, byte(e.Type))
	body = appendLenPrefixed(body, []byte(e.CollectionName))
	body = appendLenPrefixed(body, e.PointId.Bytes())

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(e.Vectors)))
	body = append(body, countBuf[:]...)

	for name, vec := range e.Vectors {
		body = appendLenPrefixed(body, []byte(name))
		var dimBuf [4]byte
		binary.BigEndian.PutUint32(dimBuf[:], uint32(len(vec)))
		body = append(body, dimBuf[:]...)
		for _, f := range vec {
			var fb [4]byte
			binary.BigEndian.PutUint32(fb[:], math.Float32bits(f))
			body = append(body, fb[:]...)
		}
	}

	checksum := murmur3.Sum64(body)
	frame := make([]byte, 0, 8+4+len(body))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	var sumBuf [8]byte
	binary.BigEndian.PutUint64(sumBuf[:], checksum)
	frame = append(frame, lenBuf[:]...)
	frame = append(frame, sumBuf[:]...)
	frame = append(frame, body...)
	return frame
}

func decodeEntry(r *bufio.Reader) (Entry, bool, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	bodyLen := binary.BigEndian.Uint32(lenBuf[:])

	var sumBuf [8]byte
	if _, err := io.ReadFull(r, sumBuf[:]); err != nil {
		return Entry{}, false, err
	}
	wantSum := binary.BigEndian.Uint64(sumBuf[:])

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Entry{}, false, err
	}
	if murmur3.Sum64(body) != wantSum {
		return Entry{}, false, merr.ErrWAL
	}

	pos := 0
	typ := EntryType(body[pos])
	pos++

	collName, pos2 := readLenPrefixed(body, pos)
	pos = pos2

	pointIdBytes, pos3 := readLenPrefixed(body, pos)
	pos = pos3
	pointId, err := vectortypes.ParsePointIdBytes(pointIdBytes)
	if err != nil {
		return Entry{}, false, merr.Wrap(err, "decode wal point id")
	}

	vecCount := binary.BigEndian.Uint32(body[pos : pos+4])
	pos += 4

	vectors := make(map[vectortypes.VectorName]vectortypes.Vector, vecCount)
	for i := uint32(0); i < vecCount; i++ {
		var name []byte
		name, pos = readLenPrefixed(body, pos)
		dim := binary.BigEndian.Uint32(body[pos : pos+4])
		pos += 4
		vec := make(vectortypes.Vector, dim)
		for j := uint32(0); j < dim; j++ {
			bits := binary.BigEndian.Uint32(body[pos : pos+4])
			vec[j] = math.Float32frombits(bits)
			pos += 4
		}
		vectors[string(name)] = vec
	}

	return Entry{
		Type:           typ,
		CollectionName: string(collName),
		PointId:        pointId,
		Vectors:        vectors,
	}, true, nil
}

func appendLenPrefixed(dst, data []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, data...)
}

func readLenPrefixed(src []byte, pos int) ([]byte, int) {
	n := binary.BigEndian.Uint32(src[pos : pos+4])
	pos += 4
	return src[pos : pos+int(n)], pos + int(n)
}
