package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lodgetix/reconcile/pkg/db/models"
	dbtypes "github.com/lodgetix/reconcile/pkg/db/types"
	"github.com/lodgetix/reconcile/pkg/enums"
)

// Legacy exports spell the event ticket reference four different ways.
var eventTicketIDKeys = []string{"eventTicketsId", "eventTicketId", "event_ticket_id", "ticketDefinitionId"}

var (
	ownerTypeKeys  = []string{"ownerType", "owner_type"}
	attendeeIDKeys = []string{"attendeeId", "attendee_id", "ownerId", "owner_id"}
	lodgeIDKeys    = []string{"lodgeId", "lodge_id"}
	orgIDKeys      = []string{"organisationId", "organisation_id", "organizationId"}
	nameKeys       = []string{"name", "ticketName", "ticket_name"}
	priceKeys      = []string{"price", "ticketPrice", "ticket_price"}
	quantityKeys   = []string{"quantity", "qty"}
)

// ResolutionOutcome says how a ticket's name and price were determined.
type ResolutionOutcome string

const (
	ResolutionResolved ResolutionOutcome = "resolved"
	ResolutionFallback ResolutionOutcome = "fallback"
)

// Resolution records the reference lookup outcome for one event ticket id.
// Fallback resolutions carry the reason the reference data could not be
// used, so the decision is auditable instead of silent.
type Resolution struct {
	EventTicketID string
	Outcome       ResolutionOutcome
	Reason        string
	Name          string
	Price         decimal.Decimal
}

// ExtractResult is the output of one registration's ticket extraction.
type ExtractResult struct {
	Tickets     []models.Ticket
	Resolutions []Resolution
}

type referenceLookup interface {
	GetByEventTicketID(ctx context.Context, eventTicketID string) (*models.EventTicket, error)
}

// Transformer turns registration ticket selections into unit ticket rows.
type Transformer struct {
	refs referenceLookup
}

// NewTransformer wires a transformer with the reference data lookup.
func NewTransformer(refs referenceLookup) (*Transformer, error) {
	if refs == nil {
		return nil, errors.New("event ticket reference lookup is required")
	}
	return &Transformer{refs: refs}, nil
}

// Extract produces unit ticket rows for a staged registration. A document
// that already carries a tickets array is taken as the source of truth;
// otherwise selections are collected from selectedTickets and the
// attendees. Multi-quantity selections expand to one row per unit, and
// re-running the extraction over its own output yields the same rows.
func (t *Transformer) Extract(ctx context.Context, reg *models.RegistrationImport) (*ExtractResult, error) {
	if reg == nil {
		return nil, errors.New("registration import is required")
	}

	doc := reg.Data
	nested := nestedData(doc)
	selections := ticketSelections(doc, nested)

	result := &ExtractResult{}
	resolved := map[string]Resolution{}

	for _, selection := range selections {
		eventTicketID, _ := lookupString(selection, eventTicketIDKeys)
		resolution, err := t.resolve(ctx, eventTicketID, selection, resolved)
		if err != nil {
			return nil, err
		}

		ownerType, ownerID := t.owner(selection, reg, doc, nested)

		quantity := lookupInt(selection, quantityKeys)
		if quantity <= 0 {
			quantity = 1
		}

		for i := 0; i < quantity; i++ {
			row := models.Ticket{
				RegistrationID: reg.RegistrationID,
				Name:           resolution.Name,
				Price:          resolution.Price,
				Quantity:       1,
				OwnerType:      ownerType,
				OwnerID:        ownerID,
				Status:         enums.TicketStatusSold,
			}
			if resolution.EventTicketID != "" {
				id := resolution.EventTicketID
				row.EventTicketID = &id
			}
			result.Tickets = append(result.Tickets, row)
		}
	}

	for _, res := range resolved {
		result.Resolutions = append(result.Resolutions, res)
	}
	return result, nil
}

// NormalizedData returns a copy of the registration document with the
// selection keys replaced by the extracted unit ticket rows, so a
// promoted registration never carries a dangling selectedTickets key.
func (t *Transformer) NormalizedData(reg *models.RegistrationImport, rows []models.Ticket) dbtypes.JSONMap {
	out := dbtypes.JSONMap{}
	for key, value := range reg.Data {
		out[key] = value
	}
	delete(out, "selectedTickets")
	delete(out, "selected_tickets")
	if inner, ok := out["registrationData"].(map[string]any); ok {
		copied := map[string]any{}
		for key, value := range inner {
			copied[key] = value
		}
		delete(copied, "selectedTickets")
		delete(copied, "selected_tickets")
		out["registrationData"] = copied
	}

	entries := make([]any, 0, len(rows))
	for _, row := range rows {
		entry := map[string]any{
			"name":      row.Name,
			"price":     row.Price.String(),
			"quantity":  row.Quantity,
			"ownerType": string(row.OwnerType),
		}
		if row.EventTicketID != nil {
			entry["eventTicketId"] = *row.EventTicketID
		}
		if row.OwnerType == enums.TicketOwnerTypeAttendee {
			entry["attendeeId"] = row.OwnerID
		} else {
			entry["ownerId"] = row.OwnerID
		}
		entries = append(entries, entry)
	}
	out["tickets"] = entries
	return out
}

// resolve figures out the name and price for a selection, preferring the
// reference data and falling back to the embedded values.
func (t *Transformer) resolve(ctx context.Context, eventTicketID string, selection dbtypes.JSONMap, cache map[string]Resolution) (Resolution, error) {
	cacheKey := eventTicketID
	if cacheKey == "" {
		cacheKey = fmt.Sprintf("embedded:%v", selection[nameKeys[0]])
	}
	if cached, ok := cache[cacheKey]; ok {
		return cached, nil
	}

	embeddedName, _ := lookupString(selection, nameKeys)
	embeddedPrice := lookupAmount(selection, priceKeys)

	resolution := Resolution{EventTicketID: eventTicketID}
	switch {
	case eventTicketID == "":
		resolution.Outcome = ResolutionFallback
		resolution.Reason = "selection carries no event ticket id"
		resolution.Name = embeddedName
		resolution.Price = embeddedPrice
	default:
		ref, err := t.refs.GetByEventTicketID(ctx, eventTicketID)
		if err != nil {
			return Resolution{}, fmt.Errorf("looking up event ticket %s: %w", eventTicketID, err)
		}
		if ref == nil {
			resolution.Outcome = ResolutionFallback
			resolution.Reason = fmt.Sprintf("event ticket %s not in reference data", eventTicketID)
			resolution.Name = embeddedName
			resolution.Price = embeddedPrice
		} else {
			resolution.Outcome = ResolutionResolved
			resolution.Name = ref.Name
			resolution.Price = ref.Price
		}
	}

	if resolution.Name == "" {
		resolution.Name = "Event Ticket"
	}

	cache[cacheKey] = resolution
	return resolution, nil
}

// owner preserves attendee ownership when the selection names an
// attendee; otherwise the ticket belongs to the lodge, resolved through
// the fallback chain lodgeId, registration lodgeId, organisationId,
// registrationId.
func (t *Transformer) owner(selection dbtypes.JSONMap, reg *models.RegistrationImport, doc, nested dbtypes.JSONMap) (enums.TicketOwnerType, string) {
	ownerType, _ := lookupString(selection, ownerTypeKeys)
	attendeeID, _ := lookupString(selection, attendeeIDKeys)

	if strings.EqualFold(ownerType, string(enums.TicketOwnerTypeAttendee)) && attendeeID != "" {
		return enums.TicketOwnerTypeAttendee, attendeeID
	}
	if ownerType == "" && attendeeID != "" && reg.RegistrationType.IsIndividual() {
		return enums.TicketOwnerTypeAttendee, attendeeID
	}

	if lodgeID, ok := lookupString(selection, lodgeIDKeys); ok {
		return enums.TicketOwnerTypeLodge, lodgeID
	}
	for _, source := range []dbtypes.JSONMap{doc, nested} {
		if source == nil {
			continue
		}
		if lodgeID, ok := source.FirstString(lodgeIDKeys...); ok {
			return enums.TicketOwnerTypeLodge, lodgeID
		}
	}
	for _, source := range []dbtypes.JSONMap{doc, nested} {
		if source == nil {
			continue
		}
		if orgID, ok := source.FirstString(orgIDKeys...); ok {
			return enums.TicketOwnerTypeLodge, orgID
		}
	}
	return enums.TicketOwnerTypeLodge, reg.RegistrationID.String()
}

// ticketSelections collects the raw selection maps, in priority order:
// an explicit tickets array wins, then selectedTickets, then whatever is
// attached per attendee.
func ticketSelections(doc, nested dbtypes.JSONMap) []dbtypes.JSONMap {
	for _, key := range []string{"tickets", "selectedTickets", "selected_tickets"} {
		if selections := mapSlice(doc, nested, key); len(selections) > 0 {
			return selections
		}
	}

	selections := []dbtypes.JSONMap{}
	for _, attendee := range mapSlice(doc, nested, "attendees") {
		attendeeID, _ := attendee.FirstString(attendeeIDKeys...)
		for _, key := range []string{"tickets", "selectedTickets", "selected_tickets"} {
			raw, ok := attendee[key].([]any)
			if !ok {
				continue
			}
			for _, entry := range raw {
				selection, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				sm := dbtypes.JSONMap(selection)
				if _, has := sm.FirstString(attendeeIDKeys...); !has && attendeeID != "" {
					sm["attendeeId"] = attendeeID
				}
				selections = append(selections, sm)
			}
		}
	}
	return selections
}

func mapSlice(doc, nested dbtypes.JSONMap, key string) []dbtypes.JSONMap {
	for _, source := range []dbtypes.JSONMap{doc, nested} {
		if source == nil {
			continue
		}
		raw, ok := source[key].([]any)
		if !ok {
			continue
		}
		out := make([]dbtypes.JSONMap, 0, len(raw))
		for _, entry := range raw {
			if m, ok := entry.(map[string]any); ok {
				out = append(out, dbtypes.JSONMap(m))
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func nestedData(raw dbtypes.JSONMap) dbtypes.JSONMap {
	for _, key := range []string{"registrationData", "registration_data"} {
		if inner, ok := raw[key].(map[string]any); ok {
			return dbtypes.JSONMap(inner)
		}
	}
	return nil
}

func lookupString(m dbtypes.JSONMap, keys []string) (string, bool) {
	return m.FirstString(keys...)
}

func lookupInt(m dbtypes.JSONMap, keys []string) int {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
	}
	return 0
}

func lookupAmount(m dbtypes.JSONMap, keys []string) decimal.Decimal {
	for _, key := range keys {
		if value, ok := m[key]; ok {
			switch v := value.(type) {
			case float64:
				return decimal.NewFromFloat(v)
			case string:
				if amount, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
					return amount
				}
			case map[string]any:
				if inner, ok := v["$numberDecimal"].(string); ok {
					if amount, err := decimal.NewFromString(inner); err == nil {
						return amount
					}
				}
			}
		}
	}
	return decimal.Zero
}
