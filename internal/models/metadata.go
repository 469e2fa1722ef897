package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// MetadataVersion is the schema version written by this build
const MetadataVersion = 1

var ErrInvalidMetadata = errors.New("invalid metadata")

// MetaKey names one metadata field
type MetaKey string

const (
	MetaNote              MetaKey = "note"
	MetaSource            MetaKey = "source"
	MetaReason            MetaKey = "reason"
	MetaRequestedAmount   MetaKey = "requested_amount"
	MetaExternalReference MetaKey = "external_reference"
	MetaEventID           MetaKey = "event_id"
	MetaOrderID           MetaKey = "order_id"
	MetaTxHash            MetaKey = "tx_hash"
	MetaActualAmount      MetaKey = "actual_amount"
	MetaCurrency          MetaKey = "currency"
	MetaAddress           MetaKey = "address"
	MetaPayURI            MetaKey = "pay_uri"
	MetaPostID            MetaKey = "post_id"
	MetaRainID            MetaKey = "rain_id"
	MetaAirdropID         MetaKey = "airdrop_id"
	MetaAdminID           MetaKey = "admin_id"
	MetaRewardID          MetaKey = "reward_id"
	MetaReferralID        MetaKey = "referral_id"
	MetaFeeForKind        MetaKey = "fee_for_kind"
	MetaVaultID           MetaKey = "vault_id"
	MetaUnlockAt          MetaKey = "unlock_at"
)

// Keys every entry kind may carry
var commonMetaKeys = []MetaKey{
	MetaNote, MetaSource, MetaReason, MetaRequestedAmount, MetaExternalReference, MetaEventID,
}

// Schema version 1: the keys each entry kind accepts on top of the common ones.
var metadataSchema = map[EntryKind][]MetaKey{
	KindDeposit:         {MetaOrderID, MetaTxHash, MetaActualAmount, MetaCurrency, MetaPayURI},
	KindWithdrawal:      {MetaOrderID, MetaTxHash, MetaCurrency, MetaAddress},
	KindTip:             {MetaPostID},
	KindRain:            {MetaRainID},
	KindAirdrop:         {MetaAirdropID},
	KindAdminAdjustment: {MetaAdminID},
	KindReward:          {MetaRewardID},
	KindReferralBonus:   {MetaReferralID},
	KindFee:             {MetaFeeForKind, MetaPostID, MetaRainID},
	KindVaultLock:       {MetaVaultID, MetaUnlockAt},
	KindVaultUnlock:     {MetaVaultID},
	KindReversal:        {MetaOrderID, MetaTxHash, MetaAdminID},
}

// Metadata is the typed key/value context attached to entries and orders
type Metadata struct {
	Version int                `json:"v"`
	Values  map[MetaKey]string `json:"values,omitempty"`
}

func NewMetadata() Metadata {
	return Metadata{Version: MetadataVersion}
}

// MetadataOf builds metadata from alternating key/value pairs
func MetadataOf(pairs ...string) Metadata {
	m := NewMetadata()
	for i := 0; i+1 < len(pairs); i += 2 {
		m = m.With(MetaKey(pairs[i]), pairs[i+1])
	}
	return m
}

// With returns a copy of m with key set; empty values are dropped
func (m Metadata) With(key MetaKey, value string) Metadata {
	out := Metadata{Version: m.Version, Values: make(map[MetaKey]string, len(m.Values)+1)}
	if out.Version == 0 {
		out.Version = MetadataVersion
	}
	for k, v := range m.Values {
		out.Values[k] = v
	}
	if value == "" {
		delete(out.Values, key)
	} else {
		out.Values[key] = value
	}
	return out
}

func (m Metadata) Get(key MetaKey) string {
	return m.Values[key]
}

// Merge returns m overlaid with other's values
func (m Metadata) Merge(other Metadata) Metadata {
	out := m
	for k, v := range other.Values {
		out = out.With(k, v)
	}
	return out
}

// Only returns the subset of m that kind accepts
func (m Metadata) Only(kind EntryKind) Metadata {
	out := NewMetadata()
	for k, v := range m.Values {
		if allowedKey(kind, k) {
			out = out.With(k, v)
		}
	}
	return out
}

// Validate checks m against the schema of kind
func (m Metadata) Validate(kind EntryKind) error {
	if m.Version > MetadataVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidMetadata, m.Version)
	}
	var unknown []string
	for k := range m.Values {
		if !allowedKey(kind, k) {
			unknown = append(unknown, string(k))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: keys %v not allowed for %s", ErrInvalidMetadata, unknown, kind)
	}
	return nil
}

func allowedKey(kind EntryKind, key MetaKey) bool {
	for _, k := range commonMetaKeys {
		if k == key {
			return true
		}
	}
	for _, k := range metadataSchema[kind] {
		if k == key {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if m.Version == 0 {
		m.Version = MetadataVersion
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (m *Metadata) Scan(value any) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*m = NewMetadata()
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("metadata: unsupported column type")
	}
	if len(b) == 0 {
		*m = NewMetadata()
		return nil
	}
	var out Metadata
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*m = out
	return nil
}
