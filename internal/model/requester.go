package model

import (
	"errors"
	"fmt"
	"strings"
)

// BookingType identifies the kind of buyer a booking is made for.
type BookingType string

const (
	BookingIndividual    BookingType = "particulier"
	BookingPrivateSchool BookingType = "scolaire_privee"
	BookingPublicSchool  BookingType = "scolaire_publique"
	BookingAssociation   BookingType = "association"
	BookingPartner       BookingType = "partenaire"
)

// Valid reports whether t is one of the known booking types.
func (t BookingType) Valid() bool {
	switch t {
	case BookingIndividual, BookingPrivateSchool, BookingPublicSchool, BookingAssociation, BookingPartner:
		return true
	}
	return false
}

// RequiresOrganization reports whether bookings of this type are made on
// behalf of an organization.
func (t BookingType) RequiresOrganization() bool {
	return t.Valid() && t != BookingIndividual
}

var (
	ErrMissingRequester       = errors.New("requester id is required")
	ErrUnknownBookingType     = errors.New("unknown booking type")
	ErrMissingOrganization    = errors.New("organization id is required for this booking type")
	ErrUnexpectedOrganization = errors.New("organization id is not allowed for individual bookings")
)

// Requester is the party a booking is made for. Each variant carries only
// the identifiers relevant to its role.
type Requester interface {
	UserID() string
	BookingType() BookingType
	OrganizationID() *string
	isRequester()
}

// Individual is a member of the public booking for themselves.
type Individual struct {
	User string
}

// SchoolTeacher books for a class of a private or public school.
type SchoolTeacher struct {
	User    string
	School  string
	Private bool
}

// AssociationMember books for an association.
type AssociationMember struct {
	User        string
	Association string
}

// PartnerContact books for a partner organization.
type PartnerContact struct {
	User    string
	Partner string
}

func (r Individual) UserID() string           { return r.User }
func (r Individual) BookingType() BookingType { return BookingIndividual }
func (r Individual) OrganizationID() *string  { return nil }
func (Individual) isRequester()               {}

func (r SchoolTeacher) UserID() string { return r.User }
func (r SchoolTeacher) BookingType() BookingType {
	if r.Private {
		return BookingPrivateSchool
	}
	return BookingPublicSchool
}
func (r SchoolTeacher) OrganizationID() *string { return &r.School }
func (SchoolTeacher) isRequester()              {}

func (r AssociationMember) UserID() string           { return r.User }
func (r AssociationMember) BookingType() BookingType { return BookingAssociation }
func (r AssociationMember) OrganizationID() *string  { return &r.Association }
func (AssociationMember) isRequester()               {}

func (r PartnerContact) UserID() string           { return r.User }
func (r PartnerContact) BookingType() BookingType { return BookingPartner }
func (r PartnerContact) OrganizationID() *string  { return &r.Partner }
func (PartnerContact) isRequester()               {}

// ResolveRequester turns the loose (user, type, organization) triple received
// from callers into a Requester variant.
func ResolveRequester(userID string, bookingType BookingType, organizationID *string) (Requester, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingRequester
	}
	if !bookingType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBookingType, bookingType)
	}

	org := ""
	if organizationID != nil {
		org = strings.TrimSpace(*organizationID)
	}

	if !bookingType.RequiresOrganization() {
		if org != "" {
			return nil, ErrUnexpectedOrganization
		}
		return Individual{User: userID}, nil
	}
	if org == "" {
		return nil, ErrMissingOrganization
	}

	switch bookingType {
	case BookingPrivateSchool:
		return SchoolTeacher{User: userID, School: org, Private: true}, nil
	case BookingPublicSchool:
		return SchoolTeacher{User: userID, School: org}, nil
	case BookingAssociation:
		return AssociationMember{User: userID, Association: org}, nil
	default:
		return PartnerContact{User: userID, Partner: org}, nil
	}
}
