package filtercat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/AdguardTeam/cbupdater/internal/errcoll"
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
)

// errNegativeID is returned when an identifier in the index is negative.
const errNegativeID errors.Error = "negative id"

// indexResp is the structure of the JSON filter index.
type indexResp struct {
	Filters []*indexRespFilter `json:"filters"`
}

// indexRespFilter is a single filter list of the JSON filter index.
//
// NOTE:  Keep the identifiers as pointers to make sure that missing values are
// reported instead of being treated as the user filter or the custom group.
type indexRespFilter struct {
	FilterID *rulegroup.FilterID      `json:"filterId"`
	GroupID  *rulegroup.FilterGroupID `json:"groupId"`
}

// decodeIndex decodes the filter index from data.
func decodeIndex(data []byte) (resp *indexResp, err error) {
	resp = &indexResp{}
	err = json.NewDecoder(bytes.NewReader(data)).Decode(resp)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// validate returns an error if f is invalid.
func (f *indexRespFilter) validate() (err error) {
	if f == nil {
		return errors.ErrNoValue
	}

	var errs []error

	switch {
	case f.FilterID == nil:
		errs = append(errs, fmt.Errorf("filterId: %w", errors.ErrNoValue))
	case *f.FilterID < 0:
		errs = append(errs, fmt.Errorf("filterId: %w: %d", errNegativeID, *f.FilterID))
	}

	switch {
	case f.GroupID == nil:
		errs = append(errs, fmt.Errorf("groupId: %w", errors.ErrNoValue))
	case *f.GroupID < 0:
		errs = append(errs, fmt.Errorf("groupId: %w: %d", errNegativeID, *f.GroupID))
	}

	return errors.Join(errs...)
}

// toInternal converts the index response into the map of filter groups to
// their filter lists, keeping the order of the lists in the response.  Invalid
// and duplicated entries are skipped; all errors are logged and collected.  n
// is the number of the filter lists in byGroup.
func (r *indexResp) toInternal(
	ctx context.Context,
	logger *slog.Logger,
	errColl errcoll.Interface,
) (byGroup map[rulegroup.FilterGroupID][]rulegroup.FilterID, n int) {
	byGroup = map[rulegroup.FilterGroupID][]rulegroup.FilterID{}
	seen := container.NewMapSet[rulegroup.FilterID]()
	for i, f := range r.Filters {
		err := f.validate()
		if err != nil {
			err = fmt.Errorf("filter at index %d: %w", i, err)
			errcoll.Collect(ctx, errColl, logger, "filter index", err)

			continue
		}

		id := *f.FilterID
		if seen.Has(id) {
			err = fmt.Errorf("filter at index %d: filterId: %w: %d", i, errors.ErrDuplicated, id)
			errcoll.Collect(ctx, errColl, logger, "filter index", err)

			continue
		}

		seen.Add(id)
		byGroup[*f.GroupID] = append(byGroup[*f.GroupID], id)
		n++
	}

	return byGroup, n
}
