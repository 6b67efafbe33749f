// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package display

import (
	"bytes"
	"errors"
	"testing"
)

type otherImage struct{}

func (otherImage) ID() uint64  { return 0 }
func (otherImage) Width() int  { return 1 }
func (otherImage) Height() int { return 1 }

func TestMemorySink(t *testing.T) {
	t.Parallel()

	var sink MemorySink
	image, err := sink.CreateImage(2, 1)
	if err != nil {
		t.Fatalf("CreateImage() error: %v", err)
	}
	second, _ := sink.CreateImage(1, 1)
	if image.ID() == second.ID() {
		t.Error("two images share an ID")
	}
	if sink.Created() != 2 {
		t.Errorf("Created() = %d, want 2", sink.Created())
	}

	pixels := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := sink.Upload(image, pixels); err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	pixels[0] = 99
	memory := image.(*MemoryImage)
	if got := memory.Pixels(); !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("Pixels() = %v, want the uploaded bytes unaffected by later caller writes", got)
	}
	if memory.Revision() != 1 {
		t.Errorf("Revision() = %d, want 1", memory.Revision())
	}
}

func TestMemorySinkRejects(t *testing.T) {
	t.Parallel()

	var sink MemorySink
	if _, err := sink.CreateImage(0, 5); err == nil {
		t.Error("CreateImage(0, 5) succeeded, want error")
	}
	image, _ := sink.CreateImage(2, 2)
	if err := sink.Upload(image, make([]byte, 3)); err == nil {
		t.Error("Upload() with short buffer succeeded, want error")
	}
	if err := sink.Upload(otherImage{}, make([]byte, 4)); !errors.Is(err, ErrForeignImage) {
		t.Errorf("Upload(foreign) error = %v, want ErrForeignImage", err)
	}
}
