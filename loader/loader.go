// Package loader moves assembled word streams in and out of processor RAM
// and reads and writes raw binary memory images: a headerless sequence of
// little-endian 16-bit words, at most 32,768 of them, loaded from address 0.
package loader

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/lookbusy1344/icmc-emulator/vm"
)

// LoadWords copies an assembled word stream into machine RAM starting at
// address 0. Cells above the program keep their current contents.
func LoadWords(m *vm.Machine, words []uint16) error {
	if len(words) > vm.MemorySize {
		return fmt.Errorf("program of %d words exceeds the %d-word memory", len(words), vm.MemorySize)
	}
	for i, w := range words {
		if err := m.SetMem(i, w); err != nil {
			return fmt.Errorf("failed to load word at address %d: %w", i, err)
		}
	}
	return nil
}

// ReadImage reads a binary memory image file.
func ReadImage(path string) ([]uint16, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied image path
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("image %s has odd length %d", path, len(data))
	}
	if len(data)/2 > vm.MemorySize {
		return nil, fmt.Errorf("image %s holds %d words, exceeding the %d-word memory", path, len(data)/2, vm.MemorySize)
	}
	words := make([]uint16, len(data)/2)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	return words, nil
}

// WriteImage writes a binary memory image file.
func WriteImage(path string, words []uint16) error {
	if len(words) > vm.MemorySize {
		return fmt.Errorf("program of %d words exceeds the %d-word memory", len(words), vm.MemorySize)
	}
	data := make([]byte, len(words)*2)
	for i, w := range words {
		binary.LittleEndian.PutUint16(data[i*2:], w)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

// LoadFile reads a binary image and loads it into machine RAM.
func LoadFile(m *vm.Machine, path string) error {
	words, err := ReadImage(path)
	if err != nil {
		return err
	}
	return LoadWords(m, words)
}
