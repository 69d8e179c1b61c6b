package backup

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var archiveNameRe = regexp.MustCompile(`^cxema-backup-(\d{8})-(\d{6})\.zip$`)

// Copy describes one on-disk archive.
type Copy struct {
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	SizeBytes int64  `json:"size_bytes"`
}

// ListCopies returns the stored archives, newest first. Creation time comes
// from the filename stamp; files someone renamed fall back to mtime.
func (s *Service) ListCopies() ([]Copy, error) {
	entries, err := os.ReadDir(s.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Copy
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, ".zip") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		created := info.ModTime().UTC()
		if ts, ok := parseNameStamp(name); ok {
			created = ts
		}
		out = append(out, Copy{
			Name:      name,
			CreatedAt: created.Format(time.RFC3339),
			SizeBytes: info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func parseNameStamp(name string) (time.Time, bool) {
	m := archiveNameRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation("20060102150405", m[1]+m[2], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// resolveCopy maps a copy name (or the "latest" alias) to an on-disk path.
// Names carrying path separators or traversal are rejected outright.
func (s *Service) resolveCopy(copyName string) (string, error) {
	name := copyName
	if copyName == "latest" {
		copies, err := s.ListCopies()
		if err != nil {
			return "", err
		}
		if len(copies) == 0 {
			return "", ErrCopyNotFound
		}
		name = copies[0].Name
	} else if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return "", ErrCopyInvalid
	}

	target := filepath.Join(s.Dir, name)
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return "", ErrCopyNotFound
	}
	return target, nil
}

// Prune removes archives older than RetentionMonths. Returns how many files
// were deleted.
func (s *Service) Prune(now time.Time) (int, error) {
	copies, err := s.ListCopies()
	if err != nil {
		return 0, err
	}
	cutoff := monthShift(now, -RetentionMonths)
	removed := 0
	for _, c := range copies {
		created, err := time.Parse(time.RFC3339, c.CreatedAt)
		if err != nil {
			continue
		}
		if created.Before(cutoff) {
			if err := os.Remove(filepath.Join(s.Dir, c.Name)); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// monthShift moves t by whole calendar months, clamping the day to the
// target month's length (Jan 31 − 1 month is Dec 31, +1 month is Feb 28/29).
func monthShift(t time.Time, months int) time.Time {
	month0 := int(t.Month()) - 1 + months
	year := t.Year() + month0/12
	month0 = month0 % 12
	if month0 < 0 {
		month0 += 12
		year--
	}
	day := t.Day()
	if last := daysInMonth(year, time.Month(month0+1)); day > last {
		day = last
	}
	return time.Date(year, time.Month(month0+1), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
