package tts

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	filePrefix = "tts_"
	fileSuffix = ".mp3"
	keyLen     = 20
)

var validName = regexp.MustCompile(`^tts_[0-9a-f]{20}\.mp3$`)

// ValidName reports whether name could have been produced by the cache.
func ValidName(name string) bool { return validName.MatchString(name) }

// Normalize is the text form that is hashed and synthesized.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "...", ". ")
	return strings.Join(strings.Fields(text), " ")
}

// Key is the content address of (voice, text).
func Key(voiceID, text string) string {
	sum := sha1.Sum([]byte(voiceID + "|" + Normalize(text)))
	return hex.EncodeToString(sum[:])[:keyLen]
}

// FileName is the stored object name for (voice, text).
func FileName(voiceID, text string) string { return filePrefix + Key(voiceID, text) + fileSuffix }

type toucher interface {
	Touch(ctx context.Context, name string, at time.Time) error
}

// CacheOptions bound the cache size; zero values disable the bound.
type CacheOptions struct {
	MaxFiles int
	MaxAge   time.Duration
}

// Cache is a write-once content-addressed audio cache. Concurrent requests for
// the same entry share one synthesis.
type Cache struct {
	synth Synthesizer
	store AudioStore
	opts  CacheOptions
	group singleflight.Group
	log   *slog.Logger
	clock func() time.Time
}

func NewCache(synth Synthesizer, store AudioStore, opts CacheOptions, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{synth: synth, store: store, opts: opts, log: log, clock: time.Now}
}

func (c *Cache) Store() AudioStore { return c.store }

// Get returns the stored name of the audio for (voice, text), synthesizing it
// on first use.
func (c *Cache) Get(ctx context.Context, text, voiceID string) (string, error) {
	text = Normalize(text)
	if text == "" {
		return "", errors.New("tts: empty text")
	}
	name := FileName(voiceID, text)
	v, err, _ := c.group.Do(name, func() (any, error) {
		ok, err := c.store.Exists(ctx, name)
		if err != nil {
			return "", fmt.Errorf("tts: stat %s: %w", name, err)
		}
		if ok {
			if t, isToucher := c.store.(toucher); isToucher {
				_ = t.Touch(ctx, name, c.clock())
			}
			return name, nil
		}
		if c.synth == nil {
			return "", errors.New("tts: no synthesizer configured")
		}
		audio, err := c.synth.Synthesize(ctx, text, voiceID)
		if err != nil {
			return "", err
		}
		if err := c.store.Put(ctx, name, audio); err != nil {
			return "", fmt.Errorf("tts: store %s: %w", name, err)
		}
		return name, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Prune evicts entries older than MaxAge, then the least recently modified
// entries beyond MaxFiles. It returns how many were removed.
func (c *Cache) Prune(ctx context.Context) (int, error) {
	objs, err := c.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("tts: list cache: %w", err)
	}
	now := c.clock()
	removed := 0
	keep := objs[:0]
	for _, o := range objs {
		if c.opts.MaxAge > 0 && now.Sub(o.ModTime) > c.opts.MaxAge {
			if err := c.store.Remove(ctx, o.Name); err != nil {
				c.log.Warn("tts prune failed", "name", o.Name, "err", err)
				continue
			}
			removed++
			continue
		}
		keep = append(keep, o)
	}
	if c.opts.MaxFiles > 0 && len(keep) > c.opts.MaxFiles {
		sort.Slice(keep, func(i, j int) bool { return keep[i].ModTime.Before(keep[j].ModTime) })
		for _, o := range keep[:len(keep)-c.opts.MaxFiles] {
			if err := c.store.Remove(ctx, o.Name); err != nil {
				c.log.Warn("tts prune failed", "name", o.Name, "err", err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		c.log.Info("tts cache pruned", "removed", removed)
	}
	return removed, nil
}
