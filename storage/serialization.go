// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/poiesic/vectorpipe/core"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
		Sort:    cbor.SortCanonical,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal serializes a stored value to CBOR.
func Marshal[T any](v *T) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

// Unmarshal deserializes a stored value from CBOR.
func Unmarshal[T any](data []byte) (*T, error) {
	var v T
	if err := decMode.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return &v, nil
}

// MarshalDocument serializes a VectorDocument to bytes.
func MarshalDocument(doc *core.VectorDocument) ([]byte, error) {
	return Marshal(doc)
}

// UnmarshalDocument deserializes a VectorDocument from bytes.
func UnmarshalDocument(data []byte) (*core.VectorDocument, error) {
	return Unmarshal[core.VectorDocument](data)
}

// MarshalJob serializes a Job to bytes.
func MarshalJob(job *core.Job) ([]byte, error) {
	return Marshal(job)
}

// UnmarshalJob deserializes a Job from bytes.
func UnmarshalJob(data []byte) (*core.Job, error) {
	return Unmarshal[core.Job](data)
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) ([]byte, error) {
	return Marshal(checkpoint)
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	return Unmarshal[core.Checkpoint](data)
}
