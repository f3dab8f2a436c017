package models

import (
	"fmt"
	"strings"
)

type Genre string

const (
	GenreRock       Genre = "Rock"
	GenreJazz       Genre = "Jazz"
	GenreClassical  Genre = "Classical"
	GenrePop        Genre = "Pop"
	GenreHipHop     Genre = "Hip-Hop"
	GenreElectronic Genre = "Electronic"
	GenreBlues      Genre = "Blues"
	GenreCountry    Genre = "Country"
	GenreReggae     Genre = "Reggae"
	GenreMetal      Genre = "Metal"
)

// AllGenres is the closed set of genres, in display order.
var AllGenres = []Genre{
	GenreRock, GenreJazz, GenreClassical, GenrePop, GenreHipHop,
	GenreElectronic, GenreBlues, GenreCountry, GenreReggae, GenreMetal,
}

// ParseGenre accepts a genre name case-insensitively and returns its canonical form.
func ParseGenre(s string) (Genre, error) {
	s = strings.TrimSpace(s)
	for _, g := range AllGenres {
		if strings.EqualFold(string(g), s) {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown genre %q", s)
}

// ParseGenres parses and de-duplicates a list of genres, keeping first-seen order.
func ParseGenres(values []string) ([]Genre, error) {
	out := make([]Genre, 0, len(values))
	seen := make(map[Genre]struct{}, len(values))
	for _, v := range values {
		g, err := ParseGenre(v)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out, nil
}

type Instrument string

const (
	InstrumentGuitar    Instrument = "Guitar"
	InstrumentPiano     Instrument = "Piano"
	InstrumentDrums     Instrument = "Drums"
	InstrumentViolin    Instrument = "Violin"
	InstrumentBass      Instrument = "Bass"
	InstrumentSaxophone Instrument = "Saxophone"
	InstrumentFlute     Instrument = "Flute"
	InstrumentCello     Instrument = "Cello"
	InstrumentTrumpet   Instrument = "Trumpet"
	InstrumentVocals    Instrument = "Vocals"
)

var AllInstruments = []Instrument{
	InstrumentGuitar, InstrumentPiano, InstrumentDrums, InstrumentViolin, InstrumentBass,
	InstrumentSaxophone, InstrumentFlute, InstrumentCello, InstrumentTrumpet, InstrumentVocals,
}

func ParseInstrument(s string) (Instrument, error) {
	s = strings.TrimSpace(s)
	for _, i := range AllInstruments {
		if strings.EqualFold(string(i), s) {
			return i, nil
		}
	}
	return "", fmt.Errorf("unknown instrument %q", s)
}

type GroupRole string

const (
	RoleOwner  GroupRole = "OWNER"
	RoleMember GroupRole = "MEMBER"
)

// JoinRequestStatus values are persisted as they were historically stored.
type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "Received"
	JoinRequestAccepted JoinRequestStatus = "Accepted"
	JoinRequestDenied   JoinRequestStatus = "Denied"
)

// SenderType says which side of a thread a message is attributed to.
type SenderType string

const (
	SenderUser  SenderType = "USER"
	SenderGroup SenderType = "GROUP"
)
