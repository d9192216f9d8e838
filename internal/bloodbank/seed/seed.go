// Package seed holds the sample data set used for demos and local runs.
package seed

import (
	"context"
	"time"

	"hemalink/internal/bloodbank/models"
	"hemalink/internal/bloodbank/store"
	"hemalink/internal/storage"
)

func date(s string) *time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func timestamp(s string) time.Time {
	t, err := time.Parse(time.DateTime, s)
	if err != nil {
		panic(err)
	}
	return t
}

// Donors returns the five sample donors.
func Donors() []models.Donor {
	donor := func(id, name, email, phone string, age int, gender string, group models.BloodGroup, weight float64,
		address, city, state, pincode string, donations int, last *time.Time, registered, emergency, contactTime string,
	) models.Donor {
		return models.Donor{
			ID: id, Name: name, Email: email, Phone: phone, Age: age, Gender: gender,
			BloodGroup: group, Weight: weight, Address: address, City: city, State: state, Pincode: pincode,
			MedicalHistory: "None", EmergencyContact: emergency, PreferredContactTime: contactTime,
			Available: true, Status: models.DonorStatusActive,
			TotalDonations: donations, LastDonation: last, RegisteredAt: timestamp(registered),
		}
	}
	return []models.Donor{
		donor("DON-A1B2C3D4", "Rahul Sharma", "rahul@example.com", "9876543210", 28, "Male", models.OPositive, 70,
			"123 Main Street", "Mumbai", "Maharashtra", "400001", 5, date("2024-12-01"), "2024-01-15 10:30:00", "9876543211", "Evening"),
		donor("DON-E5F6G7H8", "Priya Patel", "priya@example.com", "8765432109", 32, "Female", models.APositive, 58,
			"456 Park Avenue", "Delhi", "Delhi", "110001", 3, date("2025-01-10"), "2024-03-20 14:15:00", "8765432110", "Morning"),
		donor("DON-I9J0K1L2", "Amit Kumar", "amit@example.com", "7654321098", 25, "Male", models.BNegative, 72,
			"789 Gandhi Road", "Bangalore", "Karnataka", "560001", 2, nil, "2024-06-10 09:00:00", "7654321099", "Anytime"),
		donor("DON-M3N4O5P6", "Sneha Gupta", "sneha@example.com", "6543210987", 29, "Female", models.ONegative, 55,
			"321 Lake View", "Chennai", "Tamil Nadu", "600001", 8, date("2025-01-15"), "2023-08-05 16:45:00", "6543210988", "Afternoon"),
		donor("DON-Q7R8S9T0", "Vikram Singh", "vikram@example.com", "5432109876", 35, "Male", models.ABPositive, 80,
			"654 Hillside", "Pune", "Maharashtra", "411001", 4, date("2024-11-20"), "2024-02-28 11:20:00", "5432109877", "Evening"),
	}
}

// Requestors returns the sample hospital requestor.
func Requestors() []models.Requestor {
	return []models.Requestor{{
		ID:            "REQ-X1Y2Z3A4",
		Name:          "Dr. Meera Reddy",
		Email:         "meera@hospital.com",
		Phone:         "4321098765",
		Organization:  "City General Hospital",
		Address:       "Hospital Road",
		City:          "Hyderabad",
		State:         "Telangana",
		Pincode:       "500001",
		TotalRequests: 2,
		RegisteredAt:  timestamp("2024-04-10 08:30:00"),
	}}
}

// Requests returns the single pending sample request.
func Requests() []models.BloodRequest {
	created := timestamp("2025-02-01 09:00:00")
	return []models.BloodRequest{{
		ID:              "BR-B5C6D7E8",
		RequestorID:     "REQ-X1Y2Z3A4",
		PatientName:     "Ramesh Iyer",
		PatientAge:      45,
		PatientGender:   "Male",
		BloodGroup:      models.OPositive,
		UnitsNeeded:     2,
		HospitalName:    "City General Hospital",
		HospitalAddress: "Hospital Road, Hyderabad",
		Location:        "Hyderabad",
		City:            "Hyderabad",
		State:           "Telangana",
		ContactName:     "Dr. Meera Reddy",
		ContactPhone:    "4321098765",
		ContactEmail:    "meera@hospital.com",
		Urgency:         models.UrgencyHigh,
		RequiredDate:    "2025-02-05",
		Reason:          "Surgery",
		Status:          models.RequestStatusPending,
		MatchedDonors:   []string{"DON-A1B2C3D4"},
		CreatedAt:       created,
		UpdatedAt:       created,
	}}
}

var stockLevels = map[models.BloodGroup]int{
	models.APositive:  50,
	models.ANegative:  30,
	models.BPositive:  45,
	models.BNegative:  25,
	models.ABPositive: 20,
	models.ABNegative: 15,
	models.OPositive:  60,
	models.ONegative:  40,
}

// Inventory returns one entry per group, in canonical order, with each
// entry's donor set taken from Donors.
func Inventory(now time.Time) []models.InventoryEntry {
	entries := make([]models.InventoryEntry, 0, len(models.BloodGroups))
	for _, g := range models.BloodGroups {
		e := models.NewInventoryEntry(g)
		e.Units = stockLevels[g]
		e.UpdatedAt = now
		for _, d := range Donors() {
			if d.BloodGroup == g {
				e.AddDonor(d.ID)
			}
		}
		entries = append(entries, *e)
	}
	return entries
}

// Load writes the sample data in one transaction. Records with the same ids
// are overwritten, so loading twice is harmless.
func Load(ctx context.Context, tx storage.Tx, now time.Time) error {
	donors, requestors, requests, inventory := Donors(), Requestors(), Requests(), Inventory(now)

	keys := make([]storage.Key, 0, len(donors)+len(requestors)+len(requests)+len(inventory))
	for _, d := range donors {
		keys = append(keys, store.DonorKey(d.ID))
	}
	for _, r := range requestors {
		keys = append(keys, store.RequestorKey(r.ID))
	}
	for _, r := range requests {
		keys = append(keys, store.RequestKey(r.ID))
	}
	for _, e := range inventory {
		keys = append(keys, store.InventoryKey(e.BloodGroup))
	}

	return tx.RunInTx(ctx, func(ctx context.Context, rs storage.RecordStore) error {
		recs := store.New(rs)
		for i := range donors {
			if err := recs.PutDonor(ctx, &donors[i]); err != nil {
				return err
			}
		}
		for i := range requestors {
			if err := recs.PutRequestor(ctx, &requestors[i]); err != nil {
				return err
			}
		}
		for i := range requests {
			if err := recs.PutRequest(ctx, &requests[i]); err != nil {
				return err
			}
		}
		for i := range inventory {
			if err := recs.PutInventory(ctx, &inventory[i]); err != nil {
				return err
			}
		}
		return nil
	}, keys...)
}
