// Package background picks source clips for the video backdrop.
package background

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"storyreel/model"
)

// VideoExtensions are the file suffixes treated as background clips.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
	".avi":  true,
	".mkv":  true,
}

// Library is a directory with one sub-folder of clips per category.
type Library struct {
	root string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewLibrary creates a library rooted at root. A nil rng uses a time-seeded source.
func NewLibrary(root string, rng *rand.Rand) *Library {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Library{root: root, rng: rng}
}

// Root returns the library directory.
func (l *Library) Root() string {
	return l.root
}

// ValidateCategory rejects names that would escape the library root.
func ValidateCategory(category string) error {
	c := strings.TrimSpace(category)
	switch {
	case c == "":
		return &model.InputError{Field: "category", Reason: "empty"}
	case c == "." || c == ".." || strings.ContainsAny(c, `/\`):
		return &model.InputError{Field: "category", Reason: fmt.Sprintf("%q is not a folder name", category)}
	}
	return nil
}

// CategoryDir returns the folder holding clips for category.
func (l *Library) CategoryDir(category string) string {
	return filepath.Join(l.root, strings.TrimSpace(category))
}

// Clips lists eligible clips of a category, sorted by name.
func (l *Library) Clips(category string) ([]string, error) {
	if err := ValidateCategory(category); err != nil {
		return nil, err
	}
	dir := l.CategoryDir(category)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &model.ResourceMissingError{Kind: "background category folder", Path: dir}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read background folder %s: %w", dir, err)
	}
	var clips []string
	for _, e := range entries {
		if e.IsDir() || !VideoExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		clips = append(clips, filepath.Join(dir, e.Name()))
	}
	sort.Strings(clips)
	return clips, nil
}

// Select picks a clip uniformly at random. A missing or empty category is a
// ResourceMissingError, never a silent default.
func (l *Library) Select(category string) (model.BackgroundClip, error) {
	clips, err := l.Clips(category)
	if err != nil {
		return model.BackgroundClip{}, err
	}
	if len(clips) == 0 {
		return model.BackgroundClip{}, &model.ResourceMissingError{
			Kind: "background clip",
			Path: l.CategoryDir(category),
		}
	}
	l.mu.Lock()
	i := l.rng.Intn(len(clips))
	l.mu.Unlock()
	return model.BackgroundClip{Path: clips[i], Category: strings.TrimSpace(category)}, nil
}

// CategoryInfo summarises one category folder.
type CategoryInfo struct {
	Name  string `json:"name"`
	Clips int    `json:"clips"`
}

// Categories lists category folders and how many clips each holds.
func (l *Library) Categories() ([]CategoryInfo, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read background library %s: %w", l.root, err)
	}
	var out []CategoryInfo
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		clips, err := l.Clips(e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, CategoryInfo{Name: e.Name(), Clips: len(clips)})
	}
	return out, nil
}
