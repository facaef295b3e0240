package publicdata

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/clony/backend/internal/domain"
)

// resultCodeOK is the header code the portal returns for a normal response
const resultCodeOK = "00"

// Item is one ingredient row as returned by the cosmetics ingredient API
type Item struct {
	IngdName          string `json:"ingdName" xml:"ingdName"`
	IngdEngName       string `json:"ingdEngName" xml:"ingdEngName"`
	CasNo             string `json:"casNo" xml:"casNo"`
	OriginMjrKoraNm   string `json:"originMjrKoraNm" xml:"originMjrKoraNm"`
	OriginDefntKoraNm string `json:"originDefntKoraNm" xml:"originDefntKoraNm"`
}

// searchResponse is the JSON envelope of getCsmtcsIngdCpntList.
// Items is kept raw because the portal varies its shape.
type searchResponse struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			TotalCount int             `json:"totalCount"`
			Items      json.RawMessage `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

// MapToCanonicalRecord converts an API item to our domain record.
// Returns nil when the item carries no canonical name.
func MapToCanonicalRecord(item Item) *domain.CanonicalRecord {
	name := clean(item.IngdName)
	if name == "" {
		return nil
	}
	return &domain.CanonicalRecord{
		IngdName:          name,
		IngdEngName:       clean(item.IngdEngName),
		CasNo:             clean(item.CasNo),
		OriginMjrKoraNm:   clean(item.OriginMjrKoraNm),
		OriginDefntKoraNm: clean(item.OriginDefntKoraNm),
	}
}

func clean(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// parseRecord extracts the first usable item from a response body.
// JSON is tried first; anything that is not JSON is read as XML.
func parseRecord(body []byte) (*domain.CanonicalRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, domain.ErrIngredientNotFound
	}

	var items []Item
	var err error
	if trimmed[0] == '{' {
		items, err = parseJSON(trimmed)
	} else {
		items, err = parseXML(trimmed)
	}
	if err != nil {
		return nil, err
	}

	// First item wins
	for _, item := range items {
		if record := MapToCanonicalRecord(item); record != nil {
			return record, nil
		}
	}
	return nil, domain.ErrIngredientNotFound
}

func parseJSON(body []byte) ([]Item, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrLookupFailure, err)
	}

	header := resp.Response.Header
	if header.ResultCode != "" && header.ResultCode != resultCodeOK {
		return nil, fmt.Errorf("%w: result code %s: %s", domain.ErrLookupFailure, header.ResultCode, header.ResultMsg)
	}
	return decodeItems(resp.Response.Body.Items)
}

// decodeItems accepts items as a list, as {"item": [...]} or as {"item": {...}}
func decodeItems(raw json.RawMessage) ([]Item, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`)) {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var items []Item
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: malformed items list: %v", domain.ErrLookupFailure, err)
		}
		return items, nil
	case '{':
		var wrapper struct {
			Item json.RawMessage `json:"item"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: malformed items object: %v", domain.ErrLookupFailure, err)
		}
		inner := bytes.TrimSpace(wrapper.Item)
		if len(inner) > 0 && inner[0] == '{' {
			var item Item
			if err := json.Unmarshal(inner, &item); err != nil {
				return nil, fmt.Errorf("%w: malformed item: %v", domain.ErrLookupFailure, err)
			}
			return []Item{item}, nil
		}
		if len(inner) > 0 && inner[0] == '[' {
			return decodeItems(inner)
		}
		return nil, nil
	}
	return nil, nil
}

// parseXML walks the document for the first <item> element. An auth or
// service error message anywhere in the document fails the lookup.
func parseXML(body []byte) ([]Item, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: unreadable response: %v", domain.ErrLookupFailure, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "returnAuthMsg", "errMsg":
			var msg string
			if err := decoder.DecodeElement(&msg, &start); err != nil {
				return nil, fmt.Errorf("%w: unreadable error message: %v", domain.ErrLookupFailure, err)
			}
			if msg = strings.TrimSpace(msg); msg != "" && msg != "NORMAL SERVICE." {
				return nil, fmt.Errorf("%w: %s", domain.ErrLookupFailure, msg)
			}
		case "item":
			var item Item
			if err := decoder.DecodeElement(&item, &start); err != nil {
				return nil, fmt.Errorf("%w: malformed item: %v", domain.ErrLookupFailure, err)
			}
			return []Item{item}, nil
		}
	}
}
