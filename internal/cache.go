package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheManager caches reconstructed transcripts on disk. Transcripts are
// recomputed whenever the store changes; the cache only skips re-decoding an
// unchanged store.
type CacheManager struct {
	cacheDir string
}

// CacheMetadata stores metadata about the cache
type CacheMetadata struct {
	StorePath    string    `json:"store_path" yaml:"store_path"`
	StoreModTime time.Time `json:"store_mod_time" yaml:"store_mod_time"`
	CacheVersion string    `json:"cache_version" yaml:"cache_version"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// TranscriptIndexEntry represents a session entry in the index
type TranscriptIndexEntry struct {
	ID           string `yaml:"id"`
	Title        string `yaml:"title,omitempty"`
	Status       string `yaml:"status,omitempty"`
	CreatedAt    string `yaml:"created_at,omitempty"`
	UpdatedAt    string `yaml:"updated_at,omitempty"`
	MessageCount int    `yaml:"message_count"`
}

// TranscriptIndex is the YAML index of all cached transcripts
type TranscriptIndex struct {
	Sessions []TranscriptIndexEntry `yaml:"sessions"`
	Metadata CacheMetadata          `yaml:"metadata"`
}

// NewCacheManager creates a new cache manager
func NewCacheManager(cacheDir string) *CacheManager {
	return &CacheManager{cacheDir: cacheDir}
}

// EnsureCacheDir ensures the cache directory exists
func (cm *CacheManager) EnsureCacheDir() error {
	return os.MkdirAll(cm.cacheDir, 0755)
}

// GetIndexPath returns the path to the session index YAML file
func (cm *CacheManager) GetIndexPath() string {
	return filepath.Join(cm.cacheDir, "sessions.yaml")
}

// GetTranscriptPath returns the path to a session's cached transcript
func (cm *CacheManager) GetTranscriptPath(sessionID string) string {
	return filepath.Join(cm.cacheDir, fmt.Sprintf("transcript_%s.json", sessionID))
}

// IsCacheValid checks if the cache is current for the given store
func (cm *CacheManager) IsCacheValid(storePath string) (bool, error) {
	indexPath := cm.GetIndexPath()

	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		return false, nil
	}

	index, err := cm.LoadIndex()
	if err != nil {
		return false, nil
	}

	if index.Metadata.StorePath != storePath {
		return false, nil
	}

	storeInfo, err := os.Stat(storePath)
	if err != nil {
		return false, nil
	}

	if !index.Metadata.StoreModTime.Equal(storeInfo.ModTime()) {
		return false, nil
	}

	return true, nil
}

// LoadIndex loads the session index
func (cm *CacheManager) LoadIndex() (*TranscriptIndex, error) {
	data, err := os.ReadFile(cm.GetIndexPath())
	if err != nil {
		return nil, err
	}

	var index TranscriptIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}

	return &index, nil
}

// SaveIndex saves the session index
func (cm *CacheManager) SaveIndex(index *TranscriptIndex) error {
	if err := cm.EnsureCacheDir(); err != nil {
		return err
	}

	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	return os.WriteFile(cm.GetIndexPath(), data, 0644)
}

// SaveTranscript saves a single transcript to its cache file
func (cm *CacheManager) SaveTranscript(transcript *Transcript) error {
	if err := cm.EnsureCacheDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	return os.WriteFile(cm.GetTranscriptPath(transcript.SessionID), data, 0644)
}

// LoadTranscript loads a single transcript from its cache file
func (cm *CacheManager) LoadTranscript(sessionID string) (*Transcript, error) {
	data, err := os.ReadFile(cm.GetTranscriptPath(sessionID))
	if err != nil {
		return nil, err
	}

	var transcript Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}

	return &transcript, nil
}

// SaveTranscriptAndUpdateIndex saves one transcript and upserts its index
// entry. The index metadata is refreshed to the store's current mtime, so a
// later run against an unchanged store reads the transcript back instead of
// rebuilding it. A stale index (different store, or the store changed) is
// replaced rather than extended, since its other entries are no longer
// trustworthy.
func (cm *CacheManager) SaveTranscriptAndUpdateIndex(transcript *Transcript, status, storePath string) error {
	if err := cm.SaveTranscript(transcript); err != nil {
		return err
	}

	storeInfo, err := os.Stat(storePath)
	if err != nil {
		return err
	}

	index, err := cm.LoadIndex()
	if err != nil || index.Metadata.StorePath != storePath || !index.Metadata.StoreModTime.Equal(storeInfo.ModTime()) {
		index = &TranscriptIndex{
			Metadata: CacheMetadata{
				StorePath:    storePath,
				StoreModTime: storeInfo.ModTime(),
				CacheVersion: "1.0",
				CreatedAt:    time.Now(),
			},
		}
	}

	entry := TranscriptIndexEntry{
		ID:           transcript.SessionID,
		Title:        transcript.Title,
		Status:       status,
		CreatedAt:    transcript.Metadata.CreatedAt,
		UpdatedAt:    transcript.Metadata.UpdatedAt,
		MessageCount: len(transcript.Messages),
	}
	replaced := false
	for i := range index.Sessions {
		if index.Sessions[i].ID == transcript.SessionID {
			index.Sessions[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		index.Sessions = append(index.Sessions, entry)
	}
	index.Metadata.UpdatedAt = time.Now()

	return cm.SaveIndex(index)
}

// SaveTranscripts saves all transcripts and rebuilds the index
func (cm *CacheManager) SaveTranscripts(transcripts []*Transcript, sessions []*SessionInfo, storePath string) error {
	if err := cm.EnsureCacheDir(); err != nil {
		return err
	}

	storeInfo, err := os.Stat(storePath)
	if err != nil {
		return err
	}

	statusByID := make(map[string]string, len(sessions))
	for _, info := range sessions {
		statusByID[info.ID] = info.Status
	}

	index := TranscriptIndex{
		Sessions: make([]TranscriptIndexEntry, 0, len(transcripts)),
		Metadata: CacheMetadata{
			StorePath:    storePath,
			StoreModTime: storeInfo.ModTime(),
			CacheVersion: "1.0",
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		},
	}

	for _, transcript := range transcripts {
		if err := cm.SaveTranscript(transcript); err != nil {
			LogWarn("Failed to cache transcript %s: %v", transcript.SessionID, err)
			continue
		}

		index.Sessions = append(index.Sessions, TranscriptIndexEntry{
			ID:           transcript.SessionID,
			Title:        transcript.Title,
			Status:       statusByID[transcript.SessionID],
			CreatedAt:    transcript.Metadata.CreatedAt,
			UpdatedAt:    transcript.Metadata.UpdatedAt,
			MessageCount: len(transcript.Messages),
		})
	}

	return cm.SaveIndex(&index)
}

// ClearCache removes all cached transcripts and the index
func (cm *CacheManager) ClearCache() error {
	index, err := cm.LoadIndex()
	if err == nil {
		for _, entry := range index.Sessions {
			_ = os.Remove(cm.GetTranscriptPath(entry.ID))
		}
	}

	if err := os.Remove(cm.GetIndexPath()); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
