// Package registry validates raw facility rows and canonicalizes them into
// the Facility records the rest of the engine consumes.
package registry

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/facility-atlas/internal/gazetteer"
	"github.com/sells-group/facility-atlas/internal/model"
)

// Result is the outcome of one build over a raw snapshot.
type Result struct {
	Facilities []model.Facility
	Rejections []model.Rejection
	Stats      model.ResolutionStats
}

// Builder validates rows and assigns coordinates through the gazetteer.
type Builder struct {
	resolver *gazetteer.Resolver
	allowed  map[string]struct{}
}

// NewBuilder returns a builder backed by the given resolver. When
// allowedTypes is non-empty, rows whose type is not listed are rejected;
// an empty list leaves the type set open.
func NewBuilder(resolver *gazetteer.Resolver, allowedTypes []string) *Builder {
	b := &Builder{resolver: resolver}
	if len(allowedTypes) > 0 {
		b.allowed = make(map[string]struct{}, len(allowedTypes))
		for _, t := range allowedTypes {
			b.allowed[strings.ToUpper(strings.TrimSpace(t))] = struct{}{}
		}
	}
	return b
}

// Build validates rows in input order. Each row either becomes a facility or
// a rejection carrying the first rule it failed; ids derive from the raw row
// position, so a rejection never shifts the ids of later rows. A coordinate
// resolution miss is counted in the stats, never rejected.
func (b *Builder) Build(rows []model.FacilityRow) Result {
	res := Result{
		Facilities: make([]model.Facility, 0, len(rows)),
	}

	for i, row := range rows {
		rowNum := i + 1
		f, reason, ok := b.buildOne(rowNum, row)
		if !ok {
			res.Rejections = append(res.Rejections, model.Rejection{Row: rowNum, Reason: reason})
			zap.L().Warn("registry: row rejected",
				zap.Int("row", rowNum),
				zap.String("reason", string(reason)),
			)
			continue
		}
		if f.Resolved() {
			res.Stats.Resolved++
		} else {
			res.Stats.Unresolved++
			zap.L().Debug("registry: coordinates unresolved",
				zap.String("id", f.ID),
				zap.String("country", f.Country),
				zap.String("city", f.City),
			)
		}
		res.Facilities = append(res.Facilities, f)
	}

	zap.L().Info("registry: snapshot built",
		zap.Int("rows", len(rows)),
		zap.Int("facilities", len(res.Facilities)),
		zap.Int("rejected", len(res.Rejections)),
		zap.Int("resolved", res.Stats.Resolved),
		zap.Int("unresolved", res.Stats.Unresolved),
	)
	return res
}

func (b *Builder) buildOne(rowNum int, row model.FacilityRow) (model.Facility, model.RejectionReason, bool) {
	ftype := strings.TrimSpace(row.Type)
	if ftype == "" {
		return model.Facility{}, model.RejectMissingType, false
	}

	workers, ok := parseWorkers(row.TotalWorkers)
	if !ok {
		return model.Facility{}, model.RejectInvalidWorkforce, false
	}

	country := strings.TrimSpace(row.Country)
	if country == "" {
		return model.Facility{}, model.RejectMissingCountry, false
	}

	if b.allowed != nil {
		if _, listed := b.allowed[strings.ToUpper(ftype)]; !listed {
			return model.Facility{}, model.RejectUnknownType, false
		}
	}

	f := model.Facility{
		ID:           model.FacilityID(rowNum),
		Name:         strings.TrimSpace(row.Name),
		Type:         ftype,
		Country:      country,
		City:         strings.TrimSpace(row.City),
		TotalWorkers: workers,
		PctFemale:    parseRatio(row.PctFemale),
		PctMigrant:   parseRatio(row.PctMigrant),
		ProductType:  strings.TrimSpace(row.ProductType),
	}

	if coords, found := b.resolver.Resolve(f.Country, f.City); found {
		f.Coordinates = &coords
	}
	return f, "", true
}

// parseWorkers accepts a non-negative integer count. Exports write thousands
// separators ("1,200"), so commas are stripped before parsing.
func parseWorkers(raw string) (int, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// parseRatio canonicalizes a workforce percentage into a ratio. Values in
// [0,1] pass through, values in (1,100] divide by 100, everything else is
// unknown (nil). A trailing percent sign is tolerated.
func parseRatio(raw string) *float64 {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	switch {
	case v >= 0 && v <= 1:
		return &v
	case v > 1 && v <= 100:
		r := v / 100
		return &r
	default:
		return nil
	}
}
