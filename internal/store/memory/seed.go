package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"agendafit.app/internal/checkin"
)

// SeedData is the development fixture loaded into an empty in-memory store.
// Credits maps an owner id to the number of credits deposited on start.
type SeedData struct {
	Bookings []checkin.Booking `json:"bookings"`
	Credits  map[string]int64  `json:"credits"`
}

// SeedSummary reports what a seed loaded.
type SeedSummary struct {
	Bookings int
	Accounts int
}

// SeedFile reads a JSON fixture from path and applies it.
func (s *Store) SeedFile(ctx context.Context, path string) (SeedSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return SeedSummary{}, err
	}
	defer f.Close()
	return s.Seed(ctx, f)
}

// Seed decodes a JSON fixture and applies it. Nothing is written unless the
// whole fixture is valid.
func (s *Store) Seed(ctx context.Context, r io.Reader) (SeedSummary, error) {
	var data SeedData
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		return SeedSummary{}, fmt.Errorf("decode seed: %w", err)
	}
	if err := data.validate(); err != nil {
		return SeedSummary{}, err
	}

	for _, b := range data.Bookings {
		s.PutBooking(b)
	}
	owners := make([]string, 0, len(data.Credits))
	for owner := range data.Credits {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		if _, err := s.Deposit(ctx, owner, data.Credits[owner]); err != nil {
			return SeedSummary{}, fmt.Errorf("seed credits for %s: %w", owner, err)
		}
	}
	return SeedSummary{Bookings: len(data.Bookings), Accounts: len(owners)}, nil
}

func (d SeedData) validate() error {
	var errs []error
	seen := make(map[string]struct{}, len(d.Bookings))
	for i, b := range d.Bookings {
		switch {
		case strings.TrimSpace(b.ID) == "":
			errs = append(errs, fmt.Errorf("booking %d: id is required", i))
			continue
		case strings.TrimSpace(b.TeacherID) == "":
			errs = append(errs, fmt.Errorf("booking %s: teacher_id is required", b.ID))
		case !b.StatusCanonical.Valid():
			errs = append(errs, fmt.Errorf("booking %s: unknown status_canonical %q", b.ID, b.StatusCanonical))
		}
		if _, dup := seen[b.ID]; dup {
			errs = append(errs, fmt.Errorf("booking %s: duplicate id", b.ID))
		}
		seen[b.ID] = struct{}{}
	}
	for owner, n := range d.Credits {
		if strings.TrimSpace(owner) == "" || n <= 0 {
			errs = append(errs, fmt.Errorf("credits %q: owner and a positive amount are required", owner))
		}
	}
	return errors.Join(errs...)
}
