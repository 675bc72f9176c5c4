// Package resolver turns a service's link configuration plus a submitted
// form payload into concrete citizen links. Resolution runs once at
// protocol creation, before anything is persisted.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	citizenstore "civicdesk/internal/citizen/store"
	"civicdesk/internal/citizenlink/models"
	familystore "civicdesk/internal/family/store"
	id "civicdesk/pkg/domain"
	dErrors "civicdesk/pkg/domain-errors"
	"civicdesk/pkg/platform/sentinel"
	stringsutil "civicdesk/pkg/platform/strings"
	"civicdesk/pkg/requestcontext"
)

const birthDateLayout = "2006-01-02"

// Resolver resolves declared citizen links against the citizen directory
// and verifies them against the family composition graph.
type Resolver struct {
	citizens citizenstore.Directory
	family   familystore.Store
	logger   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for skipped optional links and advisory
// verification failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(citizens citizenstore.Directory, family familystore.Store, opts ...Option) *Resolver {
	r := &Resolver{
		citizens: citizens,
		family:   family,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve processes each declared link against the payload. Every link is
// resolved by, in order: the structured linkedCitizens list, the legacy
// scalar fields, the top-level linkedCitizenId. A required link that stays
// unresolved fails the whole call; an optional one is skipped with a
// warning. Returned links carry no id, protocol id or creation time, the
// caller assigns those when persisting.
func (r *Resolver) Resolve(ctx context.Context, cfgs []models.LinkConfig, payload map[string]any, submitterID id.CitizenID) ([]*models.Link, error) {
	var links []*models.Link
	for _, cfg := range cfgs {
		link, err := r.resolveOne(ctx, cfg, payload, submitterID)
		if err != nil {
			return nil, err
		}
		if link == nil {
			continue
		}
		links = append(links, link)
	}
	return links, nil
}

func (r *Resolver) resolveOne(ctx context.Context, cfg models.LinkConfig, payload map[string]any, submitterID id.CitizenID) (*models.Link, error) {
	citizenID, contextData := r.fromStructuredList(cfg, payload)
	if citizenID.IsNil() {
		citizenID = r.fromLegacyFields(ctx, cfg, payload)
	}
	if citizenID.IsNil() {
		citizenID = fromTopLevelID(payload)
	}
	if citizenID.IsNil() {
		if cfg.Required {
			return nil, dErrors.Newf(dErrors.CodeRequiredLinkMissing,
				"required citizen link %q could not be resolved", cfg.Label).
				WithMeta(requiredLinkMeta(cfg))
		}
		r.logger.WarnContext(ctx, "optional citizen link unresolved, skipping",
			"link_type", string(cfg.LinkType),
			"label", cfg.Label,
		)
		return nil, nil
	}

	if contextData == nil {
		contextData = map[string]any{}
	}
	for _, field := range cfg.ContextFields {
		if field.SourceField != "" {
			if v, ok := payload[field.SourceField]; ok {
				contextData[field.ID] = v
				continue
			}
		}
		if field.Value != nil {
			contextData[field.ID] = field.Value
		}
	}
	if len(contextData) == 0 {
		contextData = nil
	}

	link := &models.Link{
		LinkedCitizenID: citizenID,
		LinkType:        cfg.LinkType,
		Role:            cfg.Role,
		ContextData:     contextData,
	}
	r.verify(ctx, cfg, submitterID, link)
	return link, nil
}

// fromStructuredList matches the payload's linkedCitizens entries by link
// type and carries over any per-entry context data.
func (r *Resolver) fromStructuredList(cfg models.LinkConfig, payload map[string]any) (id.CitizenID, map[string]any) {
	raw, ok := payload["linkedCitizens"].([]any)
	if !ok {
		return id.CitizenID{}, nil
	}
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if stringField(entry, "linkType") != string(cfg.LinkType) {
			continue
		}
		citizenID, err := id.ParseCitizenID(stringField(entry, "linkedCitizenId"))
		if err != nil {
			continue
		}
		contextData, _ := entry["contextData"].(map[string]any)
		return citizenID, contextData
	}
	return id.CitizenID{}, nil
}

// fromLegacyFields looks the citizen up by the flat form fields older
// services use: document number first, then name plus exact birth date.
func (r *Resolver) fromLegacyFields(ctx context.Context, cfg models.LinkConfig, payload map[string]any) id.CitizenID {
	fields := cfg.MapFromLegacyFields
	if fields == nil {
		return id.CitizenID{}
	}

	if fields.Document != "" {
		if document := stringField(payload, fields.Document); document != "" {
			citizen, err := r.citizens.FindByDocument(ctx, document)
			if err == nil {
				return citizen.ID
			}
			if !errors.Is(err, sentinel.ErrNotFound) {
				r.logger.WarnContext(ctx, "citizen lookup by document failed",
					"link_type", string(cfg.LinkType), "error", err)
			}
		}
	}

	if fields.Name != "" && fields.BirthDate != "" {
		name := stringField(payload, fields.Name)
		rawDate := stringField(payload, fields.BirthDate)
		if name == "" || rawDate == "" {
			return id.CitizenID{}
		}
		birthDate, err := time.Parse(birthDateLayout, rawDate)
		if err != nil {
			return id.CitizenID{}
		}
		citizen, err := r.citizens.FindByNameAndBirthDate(ctx, name, birthDate)
		if err == nil {
			return citizen.ID
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			r.logger.WarnContext(ctx, "citizen lookup by name and birth date failed",
				"link_type", string(cfg.LinkType), "error", err)
		}
	}
	return id.CitizenID{}
}

func fromTopLevelID(payload map[string]any) id.CitizenID {
	citizenID, err := id.ParseCitizenID(stringField(payload, "linkedCitizenId"))
	if err != nil {
		return id.CitizenID{}
	}
	return citizenID
}

// verify checks the submitter's family composition for the resolved
// citizen. A match marks the link verified; anything else, including
// lookup errors, leaves it unverified.
func (r *Resolver) verify(ctx context.Context, cfg models.LinkConfig, submitterID id.CitizenID, link *models.Link) {
	// Service configurations are hand-maintained; tolerate repeated and
	// padded relationship labels.
	candidates := stringsutil.DedupeAndTrim(cfg.ExpectedRelationships)
	if len(candidates) == 0 {
		return
	}
	relationship, err := r.family.Relationship(ctx, submitterID, link.LinkedCitizenID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			r.logger.WarnContext(ctx, "family relationship lookup failed",
				"link_type", string(cfg.LinkType), "error", err)
		}
		return
	}
	for _, expected := range candidates {
		if strings.EqualFold(expected, relationship) {
			now := requestcontext.Now(ctx)
			link.Relationship = relationship
			link.IsVerified = true
			link.VerifiedAt = &now
			if actorID := requestcontext.ActorID(ctx); !actorID.IsNil() {
				verifier := actorID
				link.VerifiedBy = &verifier
			}
			return
		}
	}
}

func requiredLinkMeta(cfg models.LinkConfig) map[string]string {
	meta := map[string]string{
		"link_type": string(cfg.LinkType),
		"label":     cfg.Label,
	}
	if fields := cfg.MapFromLegacyFields; fields != nil {
		var expected []string
		for _, f := range []string{fields.Document, fields.Name, fields.BirthDate} {
			if f != "" {
				expected = append(expected, f)
			}
		}
		if len(expected) > 0 {
			meta["expected_fields"] = strings.Join(expected, ",")
		}
	}
	return meta
}

func stringField(m map[string]any, key string) string {
	if key == "" {
		return ""
	}
	v, _ := m[key].(string)
	return v
}
