package events

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// RequestKind is the u8 variant tag on the wire (spec.md §6 framing table).
type RequestKind uint8

const (
	KindFinanceVehicle RequestKind = iota
	KindFinancePayment
	KindTakeLoan
	KindVanillaLoanPayment
	KindLeaseVehicle
	KindLeaseEnd
	KindTerminateLease
	KindLeaseRenewal
	KindPurchaseLandCash
	KindLandLease
	KindLandLeaseBuyout
	KindRequestUsedItem
	KindCancelSearch
	KindDeclineListing
	KindCreateSaleListing
	KindSaleListingAction
	KindModifyListingPrice
	KindTradeInVehicle
	KindInspectListing
	KindNegotiateListing
	KindPurchaseListing
	KindRepairVehicle
	KindSetPaymentConfig
	KindFieldRepair
	KindRefillFluids
	KindReplaceTires
	KindStartRestoration
	KindStopRestoration
	KindSetRestorationCooldown
	KindServiceTruckDiscovery
	KindServiceTruckPurchase
)

var validKinds = map[RequestKind]bool{}

func init() {
	for k := RequestKind(0); k <= KindServiceTruckPurchase; k++ {
		validKinds[k] = true
	}
}

// ValidKind reports whether tag is one of the closed set of request kinds.
func ValidKind(tag RequestKind) bool { return validKinds[tag] }

// WireHeader is the normative leading fields of every request (spec.md §6):
// farmId i32, then the u8 variant tag.
type WireHeader struct {
	FarmID int32
	Kind   RequestKind
}

// ReadHeader reads the fixed 5-byte header common to every request.
func ReadHeader(r io.Reader) (WireHeader, error) {
	var h WireHeader
	var farmID int32
	if err := binary.Read(r, binary.BigEndian, &farmID); err != nil {
		return h, fmt.Errorf("events: read farmId: %w", err)
	}
	var tag uint8
	if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
		return h, fmt.Errorf("events: read variant tag: %w", err)
	}
	h.FarmID = farmID
	h.Kind = RequestKind(tag)
	return h, nil
}

// ReadBoundedInt32Array implements spec.md §6's bounded-array framing rule:
// read an i32 declared count, then read exactly min(count, 2*cap) i32
// records from the stream, leaving the stream pointer past those bytes
// regardless of whether count is ultimately acceptable. It returns a
// ResourceCap *Error when count falls outside [0, cap] — the caller is
// expected to treat a non-nil error as "reject the request", but the read
// bytes have already been drained either way (spec.md §7.4's no-leak rule).
func ReadBoundedInt32Array(r io.Reader, cap int) ([]int32, *Error, error) {
	var count int32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, nil, fmt.Errorf("events: read array count: %w", err)
	}
	if count < 0 {
		return nil, newErr(ResourceCap, "error.resource_cap_exceeded"), nil
	}

	toRead := int(count)
	if toRead > 2*cap {
		toRead = 2 * cap
	}
	out := make([]int32, toRead)
	for i := 0; i < toRead; i++ {
		if err := binary.Read(r, binary.BigEndian, &out[i]); err != nil {
			return nil, nil, fmt.Errorf("events: read array element %d: %w", i, err)
		}
	}

	if int(count) > cap {
		return out, newErr(ResourceCap, "error.resource_cap_exceeded"), nil
	}
	return out, nil, nil
}

// EncodeInt32Array writes the count-prefixed framing EncodeInt32Array's
// counterpart decodes, for building well-formed test fixtures and for the
// reference HTTP harness's wire demo transport.
func EncodeInt32Array(w io.Writer, values []int32) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(values))); err != nil {
		return err
	}
	for _, v := range values {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// CollateralRecord is the fixed-size wire record for one collateral item
// (spec.md §3's CollateralItem, minus the variable-length ref string, which
// the reference harness carries out-of-band in the JSON sibling field).
type CollateralRecord struct {
	ValueCents int64
}

// ReadBoundedCollateral mirrors ReadBoundedInt32Array for CollateralRecord,
// draining min(count, 2*MaxCollateral) fixed 8-byte records.
func ReadBoundedCollateral(r io.Reader) ([]CollateralRecord, *Error, error) {
	var count int32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, nil, fmt.Errorf("events: read collateral count: %w", err)
	}
	if count < 0 {
		return nil, newErr(ResourceCap, "error.resource_cap_exceeded"), nil
	}
	toRead := int(count)
	if toRead > 2*MaxCollateral {
		toRead = 2 * MaxCollateral
	}
	out := make([]CollateralRecord, toRead)
	for i := 0; i < toRead; i++ {
		if err := binary.Read(r, binary.BigEndian, &out[i].ValueCents); err != nil {
			return nil, nil, fmt.Errorf("events: read collateral element %d: %w", i, err)
		}
	}
	if int(count) > MaxCollateral {
		return out, newErr(ResourceCap, "error.resource_cap_exceeded"), nil
	}
	return out, nil, nil
}

// NewBuffer is a small convenience for tests building raw wire fixtures.
func NewBuffer() *bytes.Buffer { return &bytes.Buffer{} }
