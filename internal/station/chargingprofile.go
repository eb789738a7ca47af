package station

import "cpsim/internal/messages"

// UpsertChargingProfile applies the uniqueness policy: a profile sharing
// either the same ChargingProfileId, or the same (StackLevel, Purpose)
// pair, replaces in place; otherwise it is appended.
func UpsertChargingProfile(connector *Connector, profile messages.ChargingProfile) {
	for i, existing := range connector.ChargingProfiles {
		sameId := existing.ChargingProfileId == profile.ChargingProfileId
		sameSlot := existing.StackLevel == profile.StackLevel && existing.ChargingProfilePurpose == profile.ChargingProfilePurpose
		if sameId || sameSlot {
			connector.ChargingProfiles[i] = profile
			return
		}
	}
	connector.ChargingProfiles = append(connector.ChargingProfiles, profile)
}

// ClearChargingProfileFilter mirrors ClearChargingProfileRequest's optional
// fields.
type ClearChargingProfileFilter struct {
	Id *int
	StackLevel *int
	Purpose messages.ChargingProfilePurposeType
}

// matches implements the ClearChargingProfile scan rule: a profile is
// cleared if it matches any of (id), (stackLevel when purpose absent),
// (purpose when stackLevel absent), (stackLevel AND purpose).
func (f ClearChargingProfileFilter) matches(p messages.ChargingProfile) bool {
	if f.Id != nil && p.ChargingProfileId == *f.Id {
		return true
	}
	if f.StackLevel != nil && f.Purpose == "" && p.StackLevel == *f.StackLevel {
		return true
	}
	if f.Purpose != "" && f.StackLevel == nil && p.ChargingProfilePurpose == f.Purpose {
		return true
	}
	if f.StackLevel != nil && f.Purpose != "" && p.StackLevel == *f.StackLevel && p.ChargingProfilePurpose == f.Purpose {
		return true
	}
	return false
}

// ClearChargingProfiles removes every profile on connector matching filter,
// returning how many were removed.
func ClearChargingProfiles(connector *Connector, filter ClearChargingProfileFilter) int {
	kept := connector.ChargingProfiles[:0]
	removed := 0
	for _, p := range connector.ChargingProfiles {
		if filter.matches(p) {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	connector.ChargingProfiles = kept
	return removed
}
