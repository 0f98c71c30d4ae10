// Package app provides save state functionality for the NES emulator.
package app

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gones/internal/bus"
)

// StateManager manages save states on disk. Each slot file holds a JSON
// metadata header followed by the bus's own binary snapshot (Bus.Save),
// so restoring a slot reproduces CPU/PPU/APU/memory/cartridge state exactly
// rather than the partial, hand-picked fields a textual format would need.
type StateManager struct {
	saveDirectory string
	maxSlots      int
	initialized   bool
}

// stateHeader is the JSON-encoded metadata written before the binary
// snapshot in a slot file.
type stateHeader struct {
	Version     string    `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	ROMPath     string    `json:"rom_path"`
	ROMChecksum string    `json:"rom_checksum"`
	SlotNumber  int       `json:"slot_number"`
	Description string    `json:"description"`
	FrameCount  uint64    `json:"frame_count"`
	CycleCount  uint64    `json:"cycle_count"`
}

// StateSlotInfo contains information about a save state slot.
type StateSlotInfo struct {
	SlotNumber  int       `json:"slot_number"`
	Used        bool      `json:"used"`
	Timestamp   time.Time `json:"timestamp"`
	ROMPath     string    `json:"rom_path"`
	Description string    `json:"description"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
}

// NewStateManager creates a new state manager rooted at saveDirectory.
func NewStateManager(saveDirectory string) *StateManager {
	manager := &StateManager{
		saveDirectory: saveDirectory,
		maxSlots:      10,
	}

	if err := manager.initialize(); err != nil {
		fmt.Printf("Warning: state manager initialization failed: %v\n", err)
	}

	return manager
}

func (sm *StateManager) initialize() error {
	if err := os.MkdirAll(sm.saveDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create save directory: %v", err)
	}
	sm.initialized = true
	return nil
}

// SaveState snapshots the bus into a save slot.
func (sm *StateManager) SaveState(b *bus.Bus, slot int, romPath string) error {
	if !sm.initialized {
		return fmt.Errorf("state manager not initialized")
	}
	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("invalid save slot: %d (must be 0-%d)", slot, sm.maxSlots-1)
	}
	if b == nil {
		return fmt.Errorf("bus cannot be nil")
	}

	header := stateHeader{
		Version:     "1.0",
		Timestamp:   time.Now(),
		ROMPath:     romPath,
		ROMChecksum: sm.calculateROMChecksum(romPath),
		SlotNumber:  slot,
		Description: fmt.Sprintf("Save %s", time.Now().Format("2006-01-02 15:04:05")),
		FrameCount:  b.FrameCount(),
		CycleCount:  b.CycleCount(),
	}

	filePath := sm.getSlotFilePath(slot, romPath)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %v", err)
	}

	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create save file: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := json.NewEncoder(w).Encode(header); err != nil {
		return fmt.Errorf("failed to write save header: %v", err)
	}
	if err := b.Save(w); err != nil {
		return fmt.Errorf("failed to save bus state: %v", err)
	}
	return w.Flush()
}

// LoadState restores a bus snapshot from a save slot.
func (sm *StateManager) LoadState(b *bus.Bus, slot int, romPath string) error {
	if !sm.initialized {
		return fmt.Errorf("state manager not initialized")
	}
	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("invalid save slot: %d (must be 0-%d)", slot, sm.maxSlots-1)
	}
	if b == nil {
		return fmt.Errorf("bus cannot be nil")
	}

	filePath := sm.getSlotFilePath(slot, romPath)
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("save state not found in slot %d", slot)
		}
		return fmt.Errorf("failed to open save file: %v", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var header stateHeader
	if err := json.NewDecoder(r).Decode(&header); err != nil {
		return fmt.Errorf("failed to read save header: %v", err)
	}
	if header.ROMPath != romPath {
		return fmt.Errorf("save state is for a different ROM")
	}

	if err := b.Load(r); err != nil {
		return fmt.Errorf("failed to restore bus state: %v", err)
	}
	return nil
}

func (sm *StateManager) getSlotFilePath(slot int, romPath string) string {
	romName := filepath.Base(romPath)
	romNameWithoutExt := romName[:len(romName)-len(filepath.Ext(romName))]
	fileName := fmt.Sprintf("%s_slot_%d.save", romNameWithoutExt, slot)
	return filepath.Join(sm.saveDirectory, fileName)
}

func (sm *StateManager) calculateROMChecksum(romPath string) string {
	return fmt.Sprintf("checksum_%s", filepath.Base(romPath))
}

func (sm *StateManager) readHeader(filePath string) (*stateHeader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var header stateHeader
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&header); err != nil {
		return nil, err
	}
	return &header, nil
}

// GetSlotInfo returns information about all save slots for a ROM.
func (sm *StateManager) GetSlotInfo(romPath string) []StateSlotInfo {
	slots := make([]StateSlotInfo, sm.maxSlots)

	for i := 0; i < sm.maxSlots; i++ {
		slotInfo := StateSlotInfo{SlotNumber: i}

		filePath := sm.getSlotFilePath(i, romPath)
		if stat, err := os.Stat(filePath); err == nil {
			slotInfo.Used = true
			slotInfo.FilePath = filePath
			slotInfo.FileSize = stat.Size()
			slotInfo.Timestamp = stat.ModTime()

			if header, err := sm.readHeader(filePath); err == nil {
				slotInfo.ROMPath = header.ROMPath
				slotInfo.Description = header.Description
				slotInfo.Timestamp = header.Timestamp
			}
		}

		slots[i] = slotInfo
	}

	return slots
}

// DeleteState deletes a save state from a slot.
func (sm *StateManager) DeleteState(slot int, romPath string) error {
	if !sm.initialized {
		return fmt.Errorf("state manager not initialized")
	}
	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("invalid save slot: %d", slot)
	}

	filePath := sm.getSlotFilePath(slot, romPath)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("save state not found in slot %d", slot)
	}
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete save state: %v", err)
	}
	return nil
}

// HasSaveState reports whether a save state exists in a slot.
func (sm *StateManager) HasSaveState(slot int, romPath string) bool {
	if slot < 0 || slot >= sm.maxSlots {
		return false
	}
	_, err := os.Stat(sm.getSlotFilePath(slot, romPath))
	return err == nil
}

// GetMaxSlots returns the maximum number of save slots.
func (sm *StateManager) GetMaxSlots() int { return sm.maxSlots }

// SetMaxSlots sets the maximum number of save slots.
func (sm *StateManager) SetMaxSlots(slots int) {
	if slots > 0 {
		sm.maxSlots = slots
	}
}

// GetSaveDirectory returns the save directory path.
func (sm *StateManager) GetSaveDirectory() string { return sm.saveDirectory }

// SetSaveDirectory changes the save directory path, creating it if needed.
func (sm *StateManager) SetSaveDirectory(directory string) error {
	sm.saveDirectory = directory
	return sm.initialize()
}

// ExportState snapshots the bus to an arbitrary file path, outside the slot
// scheme, for manual backup/sharing.
func (sm *StateManager) ExportState(b *bus.Bus, filePath string, romPath string) error {
	header := stateHeader{
		Version:     "1.0",
		Timestamp:   time.Now(),
		ROMPath:     romPath,
		ROMChecksum: sm.calculateROMChecksum(romPath),
		SlotNumber:  -1,
		Description: fmt.Sprintf("Export %s", time.Now().Format("2006-01-02 15:04:05")),
		FrameCount:  b.FrameCount(),
		CycleCount:  b.CycleCount(),
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %v", err)
	}
	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create export file: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := json.NewEncoder(w).Encode(header); err != nil {
		return fmt.Errorf("failed to write export header: %v", err)
	}
	if err := b.Save(w); err != nil {
		return fmt.Errorf("failed to export bus state: %v", err)
	}
	return w.Flush()
}

// ImportState restores the bus from a file written by ExportState.
func (sm *StateManager) ImportState(b *bus.Bus, filePath string, romPath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to import state: %v", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var header stateHeader
	if err := json.NewDecoder(r).Decode(&header); err != nil {
		return fmt.Errorf("failed to read import header: %v", err)
	}
	if header.ROMPath != romPath {
		return fmt.Errorf("imported state is for a different ROM")
	}
	return b.Load(r)
}

// Cleanup releases state manager resources.
func (sm *StateManager) Cleanup() error {
	sm.initialized = false
	return nil
}

// GetStateManagerStats returns statistics about the state manager.
func (sm *StateManager) GetStateManagerStats(romPath string) StateManagerStats {
	slots := sm.GetSlotInfo(romPath)

	var usedSlots int
	var totalSize int64
	for _, slot := range slots {
		if slot.Used {
			usedSlots++
			totalSize += slot.FileSize
		}
	}

	return StateManagerStats{
		MaxSlots:      sm.maxSlots,
		UsedSlots:     usedSlots,
		FreeSlots:     sm.maxSlots - usedSlots,
		TotalSize:     totalSize,
		SaveDirectory: sm.saveDirectory,
		Initialized:   sm.initialized,
	}
}

// StateManagerStats contains state manager statistics.
type StateManagerStats struct {
	MaxSlots      int    `json:"max_slots"`
	UsedSlots     int    `json:"used_slots"`
	FreeSlots     int    `json:"free_slots"`
	TotalSize     int64  `json:"total_size"`
	SaveDirectory string `json:"save_directory"`
	Initialized   bool   `json:"initialized"`
}
