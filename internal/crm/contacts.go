package crm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/rendis/cog-hubspot/pkg/schema"
)

// flattenProperties turns HubSpot's {"name": {"value": v, ...}} envelopes into {"name": v}.
const flattenProperties = `.properties // {} | map_values(.value)`

// ObjectIDProperty is the contact property holding the record's object ID.
const ObjectIDProperty = "hs_object_id"

// Contact is a HubSpot contact with its properties flattened to plain values.
type Contact struct {
	VID        int64          `json:"vid"`
	Properties map[string]any `json:"properties"`
}

// Property returns a property value and whether the contact has that property at all.
func (c *Contact) Property(name string) (any, bool) {
	v, ok := c.Properties[name]
	return v, ok
}

// ObjectID returns hs_object_id, falling back to the vid.
func (c *Contact) ObjectID() string {
	if v, ok := c.Properties[ObjectIDProperty]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return strconv.FormatInt(c.VID, 10)
}

// UpsertResult is the outcome of CreateOrUpdateContact.
type UpsertResult struct {
	VID   int64 `json:"vid"`
	IsNew bool  `json:"isNew"`
}

// DeleteResult carries the deleted contact and HubSpot's verdict.
type DeleteResult struct {
	Contact *Contact
	Deleted bool
	Reason  string
}

type contactProperty struct {
	Property string `json:"property"`
	Value    any    `json:"value"`
}

// GetContactByEmail loads the contact profile registered under email.
func (h *HubSpot) GetContactByEmail(ctx context.Context, email string) (*Contact, error) {
	var raw map[string]any
	if err := h.do(ctx, http.MethodGet, pathf("/contacts/v1/contact/email/%s/profile", email), nil, &raw); err != nil {
		return nil, err
	}
	return h.decodeContact(ctx, raw)
}

// CreateOrUpdateContact upserts the contact identified by email with the given properties.
func (h *HubSpot) CreateOrUpdateContact(ctx context.Context, email string, properties map[string]any) (*UpsertResult, error) {
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	props := make([]contactProperty, 0, len(keys))
	for _, k := range keys {
		props = append(props, contactProperty{Property: k, Value: properties[k]})
	}

	var out UpsertResult
	body := map[string]any{"properties": props}
	if err := h.do(ctx, http.MethodPost, pathf("/contacts/v1/contact/createOrUpdate/email/%s/", email), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteContactByEmail looks the contact up and deletes it by vid.
func (h *HubSpot) DeleteContactByEmail(ctx context.Context, email string) (*DeleteResult, error) {
	contact, err := h.GetContactByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	var out struct {
		Deleted bool   `json:"deleted"`
		Reason  string `json:"reason"`
	}
	vid := strconv.FormatInt(contact.VID, 10)
	if err := h.do(ctx, http.MethodDelete, pathf("/contacts/v1/contact/vid/%s", vid), nil, &out); err != nil {
		return nil, err
	}
	return &DeleteResult{Contact: contact, Deleted: out.Deleted, Reason: out.Reason}, nil
}

func (h *HubSpot) decodeContact(ctx context.Context, raw map[string]any) (*Contact, error) {
	flat, err := h.jq.Evaluate(ctx, flattenProperties, raw)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeUpstream, "hubspot: unexpected contact shape").WithCause(err)
	}
	props, ok := flat.(map[string]any)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeUpstream, "hubspot: contact properties are %T, not an object", flat)
	}

	c := &Contact{Properties: props}
	if vid, ok := raw["vid"].(float64); ok {
		c.VID = int64(vid)
	}
	return c, nil
}
