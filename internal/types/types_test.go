package types

import (
	"testing"
	"time"
)

func TestParseEpisodeNumber(t *testing.T) {
	tests := []struct {
		input   string
		number  int
		kind    EpisodeKind
		wantErr bool
	}{
		{"1", 1, KindRegular, false},
		{"26", 26, KindRegular, false},
		{" 12 ", 12, KindRegular, false},
		{"S1", 1, KindSpecial, false},
		{"s2", 2, KindSpecial, false},
		{"C1", 1, KindCredits, false},
		{"T3", 3, KindTrailer, false},
		{"P1", 1, KindParody, false},
		{"O2", 2, KindOther, false},
		{"", 0, KindRegular, true},
		{"S", 0, KindRegular, true},
		{"abc", 0, KindRegular, true},
		{"-1", 0, KindRegular, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			num, kind, err := ParseEpisodeNumber(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseEpisodeNumber(%q) expected error, got %d/%v", tt.input, num, kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEpisodeNumber(%q) unexpected error: %v", tt.input, err)
			}
			if num != tt.number || kind != tt.kind {
				t.Errorf("ParseEpisodeNumber(%q) = %d/%v; want %d/%v", tt.input, num, kind, tt.number, tt.kind)
			}
		})
	}
}

func TestParseAnimeType(t *testing.T) {
	tests := []struct {
		code string
		want AnimeType
	}{
		{"2", AnimeTV},
		{"3", AnimeOVA},
		{"4", AnimeMovie},
		{"6", AnimeWeb},
		{"7", AnimeTVSpecial},
		{"0", AnimeUnknown},
		{"99", AnimeUnknown},
		{"", AnimeUnknown},
		{"tv", AnimeUnknown},
	}

	for _, tt := range tests {
		if got := ParseAnimeType(tt.code); got != tt.want {
			t.Errorf("ParseAnimeType(%q) = %v; want %v", tt.code, got, tt.want)
		}
	}
}

func TestTraktIDsPreference(t *testing.T) {
	tests := []struct {
		name string
		ids  MappedIDs
		want TraktIDs
	}{
		{
			name: "tvdb wins over tmdb show",
			ids:  MappedIDs{TVDBID: 79481, TMDBShowID: 2250},
			want: TraktIDs{TVDB: 79481},
		},
		{
			name: "imdb carried alongside tvdb",
			ids:  MappedIDs{TVDBID: 79481, IMDBID: "tt0434706"},
			want: TraktIDs{TVDB: 79481, IMDB: "tt0434706"},
		},
		{
			name: "movie id used without tvdb",
			ids:  MappedIDs{TMDBMovieID: 9323},
			want: TraktIDs{TMDB: 9323},
		},
		{
			name: "movie id preferred over show id",
			ids:  MappedIDs{TMDBShowID: 100, TMDBMovieID: 9323},
			want: TraktIDs{TMDB: 9323},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ids.TraktIDs(); got != tt.want {
				t.Errorf("TraktIDs() = %+v; want %+v", got, tt.want)
			}
		})
	}
}

func TestMappedIDsIsMovie(t *testing.T) {
	if (MappedIDs{TMDBMovieID: 9323}).IsMovie() != true {
		t.Error("movie-only mapping should be a movie")
	}
	if (MappedIDs{TVDBID: 79481, TMDBMovieID: 9323}).IsMovie() {
		t.Error("mapping with a tvdb id should not be a movie")
	}
	if (MappedIDs{}).IsMovie() {
		t.Error("empty mapping should not be a movie")
	}
}

func TestAnimeEntryDisplayTitle(t *testing.T) {
	e := AnimeEntry{Title: "Shingeki no Kyojin", TitleEnglish: "Attack on Titan"}
	if got := e.DisplayTitle(); got != "Attack on Titan" {
		t.Errorf("DisplayTitle() = %q; want %q", got, "Attack on Titan")
	}
	e.TitleEnglish = ""
	if got := e.DisplayTitle(); got != "Shingeki no Kyojin" {
		t.Errorf("DisplayTitle() = %q; want %q", got, "Shingeki no Kyojin")
	}
}

func TestWatchedEpisodeDisplay(t *testing.T) {
	tests := []struct {
		ep   WatchedEpisode
		want string
	}{
		{WatchedEpisode{Number: 12, Kind: KindRegular}, "12"},
		{WatchedEpisode{Number: 1, Kind: KindSpecial}, "S1"},
		{WatchedEpisode{Number: 2, Kind: KindCredits}, "C2"},
	}
	for _, tt := range tests {
		if got := tt.ep.Display(); got != tt.want {
			t.Errorf("Display() = %q; want %q", got, tt.want)
		}
	}
}

func TestResolutionIsNew(t *testing.T) {
	r := Resolution{}
	if !r.IsNew() {
		t.Error("resolution without a remote should be new")
	}
	r.Remote = &TraktEntry{TraktID: 1, RatedAt: time.Now()}
	if r.IsNew() {
		t.Error("resolution with a remote should not be new")
	}
}
