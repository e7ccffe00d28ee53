package qr

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/checkin-services/internal/checkinsvc/export"
)

const ManifestFile = "manifest.csv"

// SchoolParam is the query key that pins the location on the check-in form.
const SchoolParam = "school"

// Target is one printed code: the label under it and the query it carries.
type Target struct {
	Name   string
	Params map[string]string
}

type BatchOptions struct {
	BaseURL string
	Dir     string
	Render  RenderOptions
	Now     func() time.Time
}

type ManifestEntry struct {
	Name        string
	URL         string
	File        string
	GeneratedAt time.Time
}

// schools under the Suseo police precinct, grouped by patrol unit.
var schools = []string{
	"대도초", "언주초", "도성초", "역삼초", // 도곡지구대
	"도곡초", "대현초", "대곡초", "대치초", // 대치지구대
	"율현초", "왕북초", "세명초", "수서초", "자곡초", "대왕초", // 대왕파출소
	"일원초", "개포초", "대모초", "양전초", "대진초", "영희초", "대청초", // 일원지구대
	"개일초", "포이초", "개원초", "개현초", "구룡초", // 개포지구대
}

// DefaultSchools is one target per school, locking the form's location.
func DefaultSchools() []Target {
	targets := make([]Target, 0, len(schools))
	for _, s := range schools {
		targets = append(targets, Target{Name: s, Params: map[string]string{SchoolParam: s}})
	}
	return targets
}

// Batch writes <dir>/<name>_QR.png for every target and then a BOM-prefixed
// manifest.csv listing what was generated.
func Batch(targets []Target, opts BatchOptions) ([]ManifestEntry, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	entries := make([]ManifestEntry, 0, len(targets))
	for _, t := range targets {
		name := strings.TrimSpace(t.Name)
		if name == "" || strings.ContainsAny(name, `/\`) {
			return entries, fmt.Errorf("invalid target name %q", t.Name)
		}

		link, err := BuildLink(opts.BaseURL, t.Params)
		if err != nil {
			return entries, err
		}
		img, err := Render(link, name, opts.Render)
		if err != nil {
			return entries, fmt.Errorf("render %s: %w", name, err)
		}

		path := filepath.Join(opts.Dir, name+"_QR.png")
		if err := writePNG(path, img); err != nil {
			return entries, err
		}

		log.WithFields(log.Fields{"name": name, "file": path}).Info("qr generated")
		entries = append(entries, ManifestEntry{Name: name, URL: link, File: path, GeneratedAt: opts.Now()})
	}

	if err := writeManifest(filepath.Join(opts.Dir, ManifestFile), entries); err != nil {
		return entries, err
	}
	return entries, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := EncodePNG(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeManifest(path string, entries []ManifestEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	err = export.WriteTable(f, []string{"name", "url", "generated_at"}, func(emit func([]string) error) error {
		for _, e := range entries {
			if err := emit([]string{e.Name, e.URL, e.GeneratedAt.Format(time.RFC3339)}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
