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

// Package merr collects the sentinel errors for the engine's error taxonomy
// and the status/status-or-value discipline used end-to-end instead of
// panics or exceptions.
package merr

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

// Sentinel errors, one family per taxonomy class. Call sites wrap these with
// errors.Wrapf so errors.Is/errors.IsAny keep working against the sentinel
// while the message carries call-specific detail.
var (
	// UserInput
	ErrSchemaUnknownCollection = errors.New("unknown collection")
	ErrSchemaUnknownVector     = errors.New("vector name not in schema")
	ErrSchemaDimMismatch       = errors.New("vector dimension mismatch")
	ErrSchemaNonNumeric        = errors.New("vector element is not numeric")
	ErrSchemaTooManyVectors    = errors.New("too many named vectors for tinymap capacity")
	ErrMalformedJSON           = errors.New("malformed json request")
	ErrRequestTooLarge         = errors.New("request exceeds max json size")
	ErrGraphDisabled           = errors.New("collection has the relationship graph disabled")

	// Capacity
	ErrSegmentFull  = errors.New("active segment is full")
	ErrPoolFull     = errors.New("point memory pool exhausted")
	ErrTooManyBatch = errors.New("too many points in one upsert request")

	// NotFound
	ErrCollectionNotFound = errors.New("collection not found")
	ErrPointNotFound      = errors.New("point not found")

	// Conflict
	ErrCollectionExists = errors.New("collection already exists")

	// Internal
	ErrIndexBuildFailed  = errors.New("hnsw index build failed")
	ErrPersistenceFailed = errors.New("segment persistence failed")
	ErrCorruptSegment    = errors.New("on-disk segment is corrupt")
	ErrPayloadStore      = errors.New("payload store operation failed")
	ErrWAL               = errors.New("wal operation failed")

	// Transient
	ErrLockTimeout = errors.New("lock acquisition timed out")
)

// Class identifies which taxonomy bucket an error belongs to.
type Class int

const (
	ClassUnknown Class = iota
	ClassUserInput
	ClassCapacity
	ClassNotFound
	ClassConflict
	ClassInternal
	ClassTransient
)

var classified = map[error]Class{
	ErrSchemaUnknownCollection: ClassUserInput,
	ErrSchemaUnknownVector:     ClassUserInput,
	ErrSchemaDimMismatch:       ClassUserInput,
	ErrSchemaNonNumeric:        ClassUserInput,
	ErrSchemaTooManyVectors:    ClassUserInput,
	ErrMalformedJSON:           ClassUserInput,
	ErrRequestTooLarge:         ClassUserInput,
	ErrGraphDisabled:           ClassUserInput,

	ErrSegmentFull:  ClassCapacity,
	ErrPoolFull:     ClassCapacity,
	ErrTooManyBatch: ClassCapacity,

	ErrCollectionNotFound: ClassNotFound,
	ErrPointNotFound:      ClassNotFound,

	ErrCollectionExists: ClassConflict,

	ErrIndexBuildFailed:  ClassInternal,
	ErrPersistenceFailed: ClassInternal,
	ErrCorruptSegment:    ClassInternal,
	ErrPayloadStore:      ClassInternal,
	ErrWAL:               ClassInternal,

	ErrLockTimeout: ClassTransient,
}

// ClassOf walks the sentinel table looking for the first match via
// errors.Is, so a wrapped error still classifies correctly.
func ClassOf(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	for sentinel, class := range classified {
		if errors.Is(err, sentinel) {
			return class
		}
	}
	return ClassInternal
}

// HTTPStatus maps an error's class onto the HTTP status code the taxonomy
// assigns it.
func HTTPStatus(err error) int {
	switch ClassOf(err) {
	case ClassUserInput, ClassCapacity:
		return http.StatusBadRequest
	case ClassNotFound:
		return http.StatusNotFound
	case ClassConflict:
		return http.StatusConflict
	case ClassTransient, ClassInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Wrap attaches a stack trace and message to err, or returns nil if err is
// nil (mirrors the teacher's call sites: "return errors.Wrapf(err, ...)").
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// Is and IsAny re-export the cockroachdb/errors helpers so call sites never
// need a second import for the same check the teacher uses
// (errors.Is(err, merr.ErrX), errors.IsAny(err, merr.ErrX, merr.ErrY)).
func Is(err, target error) bool { return errors.Is(err, target) }

func IsAny(err error, targets ...error) bool {
	return errors.IsAny(err, targets...)
}
