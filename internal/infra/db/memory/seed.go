package memory

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	domain "github.com/skinsight/review-console/internal/domain/analysis"
)

// Seed is the YAML fixture format loaded by the memory driver.
type Seed struct {
	Users []struct {
		ID       int64  `yaml:"id"`
		SkinType string `yaml:"skinType"`
	} `yaml:"users"`
	Records []struct {
		ID              int64     `yaml:"id"`
		UserID          int64     `yaml:"userId"`
		ScanType        string    `yaml:"scanType"`
		DetectedIssue   string    `yaml:"detectedIssue"`
		ConfidenceScore float64   `yaml:"confidenceScore"`
		ImagePath       string    `yaml:"imagePath"`
		AnalysisDate    time.Time `yaml:"analysisDate"`
	} `yaml:"records"`
}

// LoadSeedFile reads a seed file into r. Records always start unreviewed.
func (r *AnalysisRepository) LoadSeedFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return r.LoadSeed(f)
}

// LoadSeed decodes a YAML seed and returns the number of records stored.
func (r *AnalysisRepository) LoadSeed(src io.Reader) (int, error) {
	var s Seed
	if err := yaml.NewDecoder(src).Decode(&s); err != nil && err != io.EOF {
		return 0, fmt.Errorf("decode seed: %w", err)
	}
	for _, u := range s.Users {
		r.PutUser(u.ID, u.SkinType)
	}
	for i, rec := range s.Records {
		if rec.ID <= 0 {
			return i, fmt.Errorf("seed record %d: id must be positive", i)
		}
		if rec.ConfidenceScore < 0 || rec.ConfidenceScore > 1 {
			return i, fmt.Errorf("seed record %d: confidenceScore %v out of [0,1]", rec.ID, rec.ConfidenceScore)
		}
		r.Put(domain.Record{
			ID:              domain.AnalysisID(rec.ID),
			UserID:          rec.UserID,
			ScanType:        rec.ScanType,
			DetectedIssue:   rec.DetectedIssue,
			ConfidenceScore: rec.ConfidenceScore,
			ImagePath:       rec.ImagePath,
			AnalysisDate:    rec.AnalysisDate,
		})
	}
	return len(s.Records), nil
}
