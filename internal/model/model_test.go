package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionAvailability(t *testing.T) {
	a := SessionAvailability{
		Session: Session{TotalCapacity: 30},
		Claims: []SeatClaim{
			{Tickets: 20, Status: BookingConfirmed},
			{Tickets: 8, Status: BookingPending},
			{Tickets: 6, Status: BookingCancelled},
		},
	}
	assert.Equal(t, 28, a.BookedSeats())
	assert.Equal(t, 2, a.AvailableSeats())

	empty := SessionAvailability{Session: Session{TotalCapacity: 12}}
	assert.Equal(t, 0, empty.BookedSeats())
	assert.Equal(t, 12, empty.AvailableSeats())
}

func TestBookingType(t *testing.T) {
	assert.True(t, BookingIndividual.Valid())
	assert.False(t, BookingIndividual.RequiresOrganization())
	for _, bt := range []BookingType{BookingPrivateSchool, BookingPublicSchool, BookingAssociation, BookingPartner} {
		assert.True(t, bt.Valid(), bt)
		assert.True(t, bt.RequiresOrganization(), bt)
	}
	assert.False(t, BookingType("admin").Valid())
	assert.False(t, BookingType("admin").RequiresOrganization())
}

func TestResolveRequester(t *testing.T) {
	org := func(s string) *string { return &s }

	tests := []struct {
		name    string
		user    string
		bt      BookingType
		org     *string
		want    Requester
		wantErr error
	}{
		{"individual", "u1", BookingIndividual, nil, Individual{User: "u1"}, nil},
		{"individual with blank org", " u1 ", BookingIndividual, org(""), Individual{User: "u1"}, nil},
		{"private school", "t1", BookingPrivateSchool, org("sch"), SchoolTeacher{User: "t1", School: "sch", Private: true}, nil},
		{"public school", "t1", BookingPublicSchool, org("sch"), SchoolTeacher{User: "t1", School: "sch"}, nil},
		{"association", "a1", BookingAssociation, org("asso"), AssociationMember{User: "a1", Association: "asso"}, nil},
		{"partner", "p1", BookingPartner, org("mairie"), PartnerContact{User: "p1", Partner: "mairie"}, nil},
		{"missing user", " ", BookingIndividual, nil, nil, ErrMissingRequester},
		{"unknown type", "u1", BookingType("vip"), nil, nil, ErrUnknownBookingType},
		{"school without org", "t1", BookingPublicSchool, nil, nil, ErrMissingOrganization},
		{"individual with org", "u1", BookingIndividual, org("x"), nil, ErrUnexpectedOrganization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRequester(tt.user, tt.bt, tt.org)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.bt, got.BookingType())
		})
	}
}

func TestRequesterOrganizationID(t *testing.T) {
	assert.Nil(t, Individual{User: "u"}.OrganizationID())

	id := SchoolTeacher{User: "t", School: "s-1"}.OrganizationID()
	require.NotNil(t, id)
	assert.Equal(t, "s-1", *id)
}
