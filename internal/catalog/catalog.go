// Package catalog loads the landmark dataset and resolves names to entries.
package catalog

import (
	"encoding/xml"
	"fmt"
	"math/rand"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/geotone-app/geotone/internal/models"
)

// xmlDataset mirrors the dataset file layout: a list of attraction entries.
type xmlDataset struct {
	XMLName xml.Name   `xml:"atractii"`
	Entries []xmlEntry `xml:"atractie"`
}

type xmlEntry struct {
	Name        string `xml:"nume"`
	Locality    string `xml:"localitate"`
	Image       string `xml:"imagine"`
	Wiki        string `xml:"wikipedia"`
	Description string `xml:"descriere"`
	Lat         string `xml:"lat"`
	Lon         string `xml:"lon"`
}

// Catalog is an in-memory landmark index. Loaded once at startup, read-only
// afterwards.
type Catalog struct {
	landmarks []models.Landmark
}

// Load parses the dataset XML.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var ds xmlDataset
	if err := xml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}

	c := &Catalog{landmarks: make([]models.Landmark, 0, len(ds.Entries))}
	for _, e := range ds.Entries {
		lm := models.Landmark{
			Name:        strings.TrimSpace(e.Name),
			Locality:    strings.TrimSpace(e.Locality),
			Description: CleanText(e.Description),
			ImageURL:    strings.TrimSpace(e.Image),
			WikiURL:     strings.TrimSpace(e.Wiki),
		}
		if lat, err := strconv.ParseFloat(strings.TrimSpace(e.Lat), 64); err == nil {
			lm.Lat = &lat
		}
		if lon, err := strconv.ParseFloat(strings.TrimSpace(e.Lon), 64); err == nil {
			lm.Lon = &lon
		}
		if lm.Name == "" {
			continue
		}
		c.landmarks = append(c.landmarks, lm)
	}

	log.Info().Str("path", path).Int("landmarks", len(c.landmarks)).Msg("Landmark catalog loaded")
	return c, nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.landmarks) }

// All returns every landmark.
func (c *Catalog) All() []models.Landmark { return c.landmarks }

// MatchByName returns the first landmark whose name contains the query,
// case-insensitive. When nothing matches, a random entry is returned — the
// demo always has something to play.
func (c *Catalog) MatchByName(query string) (*models.Landmark, bool) {
	if len(c.landmarks) == 0 {
		return nil, false
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q != "" {
		for i := range c.landmarks {
			if strings.Contains(strings.ToLower(c.landmarks[i].Name), q) {
				return &c.landmarks[i], true
			}
		}
	}
	pick := c.landmarks[rand.Intn(len(c.landmarks))]
	return &pick, false
}

// Search returns all landmarks whose name or locality contains the query.
func (c *Catalog) Search(query string) []models.Landmark {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.landmarks
	}
	var out []models.Landmark
	for _, lm := range c.landmarks {
		if strings.Contains(strings.ToLower(lm.Name), q) || strings.Contains(strings.ToLower(lm.Locality), q) {
			out = append(out, lm)
		}
	}
	return out
}

var (
	reCitation   = regexp.MustCompile(`\[[0-9]+\]`)
	reParens     = regexp.MustCompile(`\([^)]*\)`)
	reGluedLower = regexp.MustCompile(`([a-zăâîșț])([A-ZĂÂÎȘȚ])`)
	reDigitWord  = regexp.MustCompile(`([0-9])([a-zA-Zăâîșț])`)
	reWordDigit  = regexp.MustCompile(`([a-zA-Zăâîșț])([0-9])`)
	reSpaces     = regexp.MustCompile(`\s+`)
	reSentence   = regexp.MustCompile(`(?:[.!?])\s+`)
)

// CleanText scrubs scraped description text: citation markers, parentheticals,
// words glued together by markup stripping, digits stuck to words.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = reCitation.ReplaceAllString(text, "")
	text = reParens.ReplaceAllString(text, " ")
	text = reGluedLower.ReplaceAllString(text, "$1 $2")
	text = reDigitWord.ReplaceAllString(text, "$1 $2")
	text = reWordDigit.ReplaceAllString(text, "$1 $2")
	return strings.TrimSpace(reSpaces.ReplaceAllString(text, " "))
}

// ShortDescription keeps roughly the first three sentences, topping up with
// two more when the result is under 200 characters.
func ShortDescription(text string) string {
	if text == "" {
		return ""
	}
	sentences := splitSentences(text)
	n := 3
	if n > len(sentences) {
		n = len(sentences)
	}
	desc := strings.Join(sentences[:n], " ")
	if len(desc) < 200 && len(sentences) > 3 {
		extra := 5
		if extra > len(sentences) {
			extra = len(sentences)
		}
		desc += " " + strings.Join(sentences[3:extra], " ")
	}
	return CleanText(desc)
}

// splitSentences splits on sentence-final punctuation followed by whitespace,
// keeping the punctuation with its sentence.
func splitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range reSentence.FindAllStringIndex(text, -1) {
		// loc[0]+1 keeps the terminator with the sentence.
		out = append(out, strings.TrimSpace(text[last:loc[0]+1]))
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
