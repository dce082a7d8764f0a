// Package parser reads AniDB XML export files.
//
// Two export templates are supported: the per-anime "xml-plain-new" layout
// and the flat "xml-singlefile-dataonly" layout, where anime, episode and
// file records live in separate sections and are joined by ID.
package parser

import (
	"encoding/xml"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mydehq/anitrakt/internal/logger"
	"github.com/mydehq/anitrakt/internal/types"
)

// Export format names as reported by Format and Stats.
const (
	FormatPlainNew   = "xml-plain-new"
	FormatSingleFile = "xml-singlefile-dataonly"
)

var dateLayouts = []string{
	"02.01.2006 15:04",
	"02.01.2006",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate parses an AniDB timestamp like "25.12.2023 14:30" or
// "25.12.2023". ISO dates are accepted as a fallback. Placeholder values
// return the zero time.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Stats summarizes an export file.
type Stats struct {
	TotalAnime      int
	WithRatings     int
	WithWatched     int
	WatchedEpisodes int
	Restricted      int
	Format          string
}

// Parser reads one AniDB export file. Parse results are cached, so repeated
// calls to WatchedAnime or Stats do not re-read the file.
type Parser struct {
	path    string
	format  string
	entries []types.AnimeEntry
}

// New returns a parser for the export file at path.
func New(path string) *Parser {
	return &Parser{path: path}
}

// Format returns the detected export format. Empty before Parse.
func (p *Parser) Format() string {
	return p.format
}

// Parse reads and decodes the export file, returning every anime record it
// contains including unwatched and unrated ones.
func (p *Parser) Parse() ([]types.AnimeEntry, error) {
	if p.entries != nil {
		return p.entries, nil
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, types.ErrParse{Path: p.path, Reason: err.Error()}
	}

	var doc exportDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, types.ErrParse{Path: p.path, Reason: "invalid XML: " + err.Error()}
	}

	p.format = detectFormat(&doc)
	logger.Debug("detected export format", "format", p.format, "path", p.path)

	if p.format == FormatSingleFile {
		p.entries = parseSingleFile(&doc)
	} else {
		p.entries = parsePlainNew(&doc)
	}

	if len(p.entries) == 0 {
		return nil, types.ErrParse{Path: p.path, Reason: "no anime records found"}
	}
	return p.entries, nil
}

// WatchedAnime returns only entries with at least one watched episode or a
// rating. Restricted entries are dropped when excludeRestricted is set.
func (p *Parser) WatchedAnime(excludeRestricted bool) ([]types.AnimeEntry, error) {
	entries, err := p.Parse()
	if err != nil {
		return nil, err
	}

	watched := make([]types.AnimeEntry, 0, len(entries))
	for _, e := range entries {
		if excludeRestricted && e.Restricted {
			continue
		}
		if len(e.Episodes) > 0 || e.Rating != nil {
			watched = append(watched, e)
		}
	}
	return watched, nil
}

// Stats returns summary counts for the export.
func (p *Parser) Stats() (Stats, error) {
	entries, err := p.Parse()
	if err != nil {
		return Stats{}, err
	}

	s := Stats{TotalAnime: len(entries), Format: p.format}
	for _, e := range entries {
		if e.Rating != nil {
			s.WithRatings++
		}
		if len(e.Episodes) > 0 {
			s.WithWatched++
			s.WatchedEpisodes += len(e.Episodes)
		}
		if e.Restricted {
			s.Restricted++
		}
	}
	return s, nil
}

// exportDoc covers both export layouts in one decode pass. Element names are
// case-sensitive, so the PascalCase plain-new fields and the lowercase
// singlefile fields never collide.
type exportDoc struct {
	XMLName xml.Name

	Anime []plainAnime `xml:"Anime"`

	SFAnime    []sfAnime   `xml:"anime"`
	SFEpisodes []sfEpisode `xml:"episode"`
	SFFiles    []sfFile    `xml:"file"`
}

type plainAnime struct {
	AnimeID        string         `xml:"AnimeID"`
	Name           string         `xml:"Name"`
	NameEnglish    string         `xml:"NameEnglish"`
	Type           string         `xml:"Type"`
	EpisodeCount   string         `xml:"EpisodeCount"`
	SpecialCount   string         `xml:"SpecialCount"`
	IsRestricted   string         `xml:"IsRestricted"`
	MyVote         string         `xml:"MyVote"`
	MyVoteDate     string         `xml:"MyVoteDate"`
	MyTempVote     string         `xml:"MyTempVote"`
	MyTempVoteDate string         `xml:"MyTempVoteDate"`
	Episodes       []plainEpisode `xml:"Episodes>Episode"`
}

type plainEpisode struct {
	EpNo        string      `xml:"EpNo"`
	MyEpWatched string      `xml:"MyEpWatched"`
	ViewDate    string      `xml:"ViewDate"`
	Files       []plainFile `xml:"Files>File"`
}

type plainFile struct {
	ViewDate string `xml:"ViewDate"`
}

type sfAnime struct {
	AnimeID        string `xml:"AnimeID"`
	Name           string `xml:"Name"`
	NameEnglish    string `xml:"NameEnglish"`
	TypeID         string `xml:"TypeID"`
	Eps            string `xml:"Eps"`
	EpsSpecial     string `xml:"EpsSpecial"`
	Hentai         string `xml:"Hentai"`
	MyVote         string `xml:"MyVote"`
	MyVoteDate     string `xml:"MyVoteDate"`
	MyTempVote     string `xml:"MyTempVote"`
	MyTempVoteDate string `xml:"MyTempVoteDate"`
}

type sfEpisode struct {
	EpID    string `xml:"EpID"`
	AnimeID string `xml:"AnimeID"`
	EpNo    string `xml:"EpNo"`
}

type sfFile struct {
	AnimeID   string `xml:"AnimeID"`
	EpID      string `xml:"EpID"`
	MyWatched string `xml:"MyWatched"`
	ViewDate  string `xml:"ViewDate"`
}

func detectFormat(doc *exportDoc) string {
	switch doc.XMLName.Local {
	case "my_anime_list":
		return FormatSingleFile
	case "MyList":
		return FormatPlainNew
	}
	if len(doc.SFAnime) > 0 {
		return FormatSingleFile
	}
	return FormatPlainNew
}

func parsePlainNew(doc *exportDoc) []types.AnimeEntry {
	entries := make([]types.AnimeEntry, 0, len(doc.Anime))
	for i := range doc.Anime {
		a := &doc.Anime[i]

		id := parseInt(a.AnimeID)
		if id == 0 {
			continue
		}

		entry := types.AnimeEntry{
			AniDBID:       id,
			Title:         textOr(a.Name, "Unknown Anime "+strconv.Itoa(id)),
			TitleEnglish:  strings.TrimSpace(a.NameEnglish),
			Type:          types.ParseAnimeType(a.Type),
			TotalEpisodes: parseInt(a.EpisodeCount),
			TotalSpecials: parseInt(a.SpecialCount),
			Restricted:    isTrue(a.IsRestricted),
			Rating:        parseRating(a.MyVote, a.MyVoteDate, a.MyTempVote, a.MyTempVoteDate),
			Episodes:      parseEpisodesPlainNew(a.Episodes),
		}
		entries = append(entries, entry)
	}
	return entries
}

func parseEpisodesPlainNew(eps []plainEpisode) []types.WatchedEpisode {
	type epKey struct {
		kind   types.EpisodeKind
		number int
	}
	seen := map[epKey]int{}
	var out []types.WatchedEpisode

	for _, ep := range eps {
		if !isTrue(ep.MyEpWatched) {
			continue
		}
		number, kind, err := types.ParseEpisodeNumber(ep.EpNo)
		if err != nil {
			continue
		}

		// Earliest view date across the episode and all of its files.
		watchedAt := ParseDate(ep.ViewDate)
		for _, f := range ep.Files {
			if t := ParseDate(f.ViewDate); !t.IsZero() && (watchedAt.IsZero() || t.Before(watchedAt)) {
				watchedAt = t
			}
		}

		key := epKey{kind, number}
		if idx, ok := seen[key]; ok {
			existing := &out[idx]
			if !watchedAt.IsZero() && (existing.WatchedAt.IsZero() || watchedAt.Before(existing.WatchedAt)) {
				existing.WatchedAt = watchedAt
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, types.WatchedEpisode{Number: number, Kind: kind, WatchedAt: watchedAt})
	}
	return out
}

func parseSingleFile(doc *exportDoc) []types.AnimeEntry {
	index := make(map[int]int, len(doc.SFAnime))
	entries := make([]types.AnimeEntry, 0, len(doc.SFAnime))

	for i := range doc.SFAnime {
		a := &doc.SFAnime[i]

		id := parseInt(a.AnimeID)
		if id == 0 {
			continue
		}

		index[id] = len(entries)
		entries = append(entries, types.AnimeEntry{
			AniDBID:       id,
			Title:         textOr(a.Name, "Unknown Anime "+strconv.Itoa(id)),
			TitleEnglish:  strings.TrimSpace(a.NameEnglish),
			Type:          types.ParseAnimeType(a.TypeID),
			TotalEpisodes: parseInt(a.Eps),
			TotalSpecials: parseInt(a.EpsSpecial),
			Restricted:    strings.TrimSpace(a.Hentai) == "1",
			Rating:        parseRating(a.MyVote, a.MyVoteDate, a.MyTempVote, a.MyTempVoteDate),
		})
	}

	// EpID -> EpNo, needed to turn file records into episode numbers.
	epNumbers := make(map[int]string, len(doc.SFEpisodes))
	for _, ep := range doc.SFEpisodes {
		epID := parseInt(ep.EpID)
		if epID != 0 && strings.TrimSpace(ep.EpNo) != "" {
			epNumbers[epID] = ep.EpNo
		}
	}

	for _, f := range doc.SFFiles {
		if strings.TrimSpace(f.MyWatched) != "1" {
			continue
		}

		idx, ok := index[parseInt(f.AnimeID)]
		if !ok {
			continue
		}
		epNo, ok := epNumbers[parseInt(f.EpID)]
		if !ok {
			continue
		}
		number, kind, err := types.ParseEpisodeNumber(epNo)
		if err != nil {
			continue
		}

		watchedAt := ParseDate(f.ViewDate)
		entry := &entries[idx]

		merged := false
		for i := range entry.Episodes {
			ep := &entry.Episodes[i]
			if ep.Kind == kind && ep.Number == number {
				if !watchedAt.IsZero() && (ep.WatchedAt.IsZero() || watchedAt.Before(ep.WatchedAt)) {
					ep.WatchedAt = watchedAt
				}
				merged = true
				break
			}
		}
		if !merged {
			entry.Episodes = append(entry.Episodes, types.WatchedEpisode{
				Number: number, Kind: kind, WatchedAt: watchedAt,
			})
		}
	}

	return entries
}

// parseRating builds a rating from the vote fields, falling back to the
// temporary vote when no permanent one is set. Scores clamp to 1..10.
func parseRating(vote, voteDate, tempVote, tempVoteDate string) *types.AnimeRating {
	score := strings.TrimSpace(vote)
	ratedAt := voteDate
	temporary := false

	if score == "" || score == "-" {
		score = strings.TrimSpace(tempVote)
		ratedAt = tempVoteDate
		temporary = true
	}
	if score == "" || score == "-" {
		return nil
	}

	f, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return nil
	}
	n := int(math.Round(f))
	if n < 1 {
		n = 1
	} else if n > 10 {
		n = 10
	}

	return &types.AnimeRating{Score: n, RatedAt: ParseDate(ratedAt), Temporary: temporary}
}

// parseInt parses an integer field, tolerating thousands separators and
// placeholder dashes. Unparseable values become zero.
func parseInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}
	s = strings.NewReplacer(".", "", ",", "").Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(math.Round(f))
}

func isTrue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func textOr(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	return s
}
