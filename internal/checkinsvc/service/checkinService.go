package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/checkin-services/internal/checkinsvc/models"
	"github.com/avvvet/checkin-services/internal/checkinsvc/store"
)

var ErrStoreUnavailable = errors.New("check-in store unavailable")

// ValidationError lists the submission fields that were blank or not
// acceptable. Nothing has been written when it is returned.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
}

// Notifier is told about every check-in after it has been stored.
type Notifier interface {
	CheckinCreated(ctx context.Context, r models.Record) error
}

type legacyInput struct {
	Name     string `validate:"required"`
	Location string `validate:"required"`
}

type typedInput struct {
	Type     string `validate:"required"`
	Name     string `validate:"required"`
	Location string `validate:"required"`
}

type CheckinOptions struct {
	Schema     models.Schema
	Location   *time.Location
	Categories []string
	Now        func() time.Time
}

// CheckinService turns form submissions into appended rows.
type CheckinService struct {
	table      store.Table
	schema     models.Schema
	loc        *time.Location
	categories []string
	now        func() time.Time
	validate   *validator.Validate
	notifiers  []Notifier
}

func NewCheckinService(table store.Table, opts CheckinOptions) *CheckinService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Schema.Header == nil {
		opts.Schema = models.TypedSchema
	}
	return &CheckinService{
		table:      table,
		schema:     opts.Schema,
		loc:        opts.Location,
		categories: opts.Categories,
		now:        opts.Now,
		validate:   validator.New(),
	}
}

func (s *CheckinService) AddNotifier(n Notifier) {
	s.notifiers = append(s.notifiers, n)
}

func (s *CheckinService) Schema() models.Schema { return s.schema }

func (s *CheckinService) Categories() []string { return s.categories }

// Prepare creates the worksheet with its header row when it is missing.
func (s *CheckinService) Prepare(ctx context.Context) error {
	if err := s.table.EnsureWorksheet(ctx, s.schema.Header); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func trimSubmission(sub models.Submission) models.Submission {
	return models.Submission{
		Type:     strings.TrimSpace(sub.Type),
		Name:     strings.TrimSpace(sub.Name),
		Location: strings.TrimSpace(sub.Location),
		Place:    strings.TrimSpace(sub.Place),
	}
}

// Validate checks the required fields of the active schema.
func (s *CheckinService) Validate(sub models.Submission) error {
	sub = trimSubmission(sub)

	var input interface{}
	if s.schema.HasSerial() {
		input = legacyInput{Name: sub.Name, Location: sub.Location}
	} else {
		input = typedInput{Type: sub.Type, Name: sub.Name, Location: sub.Location}
	}

	var fields []string
	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(fe.Field()))
		}
	}

	if !s.schema.HasSerial() && sub.Type != "" && len(s.categories) > 0 && !slices.Contains(s.categories, sub.Type) {
		fields = append(fields, "type")
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Submit validates sub, stamps it with the current time and appends it as
// one row. A store failure is returned as ErrStoreUnavailable and is not
// retried; the caller cannot tell whether the row landed.
func (s *CheckinService) Submit(ctx context.Context, sub models.Submission) (models.Record, error) {
	if err := s.Validate(sub); err != nil {
		return models.Record{}, err
	}
	sub = trimSubmission(sub)

	now := s.now().In(s.loc)
	rec := models.Record{
		Timestamp: now.Format(models.TimestampLayout),
		Time:      &now,
		Type:      sub.Type,
		Name:      sub.Name,
		Location:  sub.Location,
		Place:     sub.Place,
	}

	if s.schema.HasSerial() {
		serial, err := s.nextSerial(ctx)
		if err != nil {
			log.WithError(err).Error("serial number lookup failed")
			return models.Record{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		rec.Serial = &serial
		rec.Type = ""
		rec.Place = ""
	}

	if err := s.table.AppendRow(ctx, s.schema.Row(rec)); err != nil {
		log.WithError(err).WithField("name", rec.Name).Error("check-in append failed")
		return models.Record{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	log.WithFields(log.Fields{
		"schema":   s.schema.Name,
		"type":     rec.Type,
		"name":     rec.Name,
		"location": rec.Location,
	}).Info("check-in recorded")

	for _, n := range s.notifiers {
		if err := n.CheckinCreated(ctx, rec); err != nil {
			log.WithError(err).Warn("check-in notification failed")
		}
	}
	return rec, nil
}

// nextSerial reconciles the header row and picks the serial for the next
// legacy row. Without a backend sequence the serial is the current row count
// including the header, so two concurrent submitters can draw the same one.
// Rows are counted on the backing table; a cached snapshot may be behind.
func (s *CheckinService) nextSerial(ctx context.Context) (int, error) {
	values, err := store.Uncached(s.table).GetAllValues(ctx)
	if err != nil {
		return 0, err
	}

	count := len(values)
	if count == 0 || !s.schema.SameHeader(values[0]) {
		if err := s.table.SetHeader(ctx, s.schema.Header); err != nil {
			return 0, err
		}
		if count == 0 {
			count = 1
		}
	}

	if seq, ok := store.SequencerOf(s.table); ok {
		return seq.NextSerial(ctx)
	}
	return count, nil
}
