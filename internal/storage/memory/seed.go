package memory

import "pecuny/internal/core"

// Sections returns the seeded sections, identical to the SQL migration.
func Sections() []core.Section {
	return []core.Section{
		{ID: 1, Label: "Income"},
		{ID: 2, Label: "Housing"},
		{ID: 3, Label: "Household"},
		{ID: 4, Label: "Leisure"},
		{ID: 5, Label: "Work"},
		{ID: 6, Label: "Transport"},
		{ID: 7, Label: "Education"},
		{ID: 8, Label: "Insurance"},
		{ID: 9, Label: "Financing"},
		{ID: 10, Label: "Others"},
	}
}

// Categories returns the seeded global categories, identical to the SQL
// migration.
func Categories() []core.Category {
	return []core.Category{
		{ID: 1, Label: "Salary", SectionID: 1},
		{ID: 2, Label: "Support", SectionID: 1},
		{ID: 3, Label: "Other income", SectionID: 1},
		{ID: 4, Label: "Rent", SectionID: 2},
		{ID: 5, Label: "Heating", SectionID: 2},
		{ID: 6, Label: "Electricity", SectionID: 2},
		{ID: 7, Label: "Water", SectionID: 2},
		{ID: 8, Label: "Renovation/Repair", SectionID: 2},
		{ID: 9, Label: "TV licence", SectionID: 2},
		{ID: 10, Label: "Phone and internet", SectionID: 2},
		{ID: 11, Label: "Furniture", SectionID: 2},
		{ID: 12, Label: "Electric appliances", SectionID: 2},
		{ID: 13, Label: "Detergent", SectionID: 3},
		{ID: 14, Label: "Groceries", SectionID: 3},
		{ID: 15, Label: "Beverages", SectionID: 3},
		{ID: 16, Label: "Drink and tobacco", SectionID: 3},
		{ID: 17, Label: "Medication", SectionID: 3},
		{ID: 18, Label: "Hygiene products", SectionID: 3},
		{ID: 19, Label: "Restaurant", SectionID: 4},
		{ID: 20, Label: "Hobby", SectionID: 4},
		{ID: 21, Label: "Gym", SectionID: 4},
		{ID: 22, Label: "Pets", SectionID: 4},
		{ID: 23, Label: "Membership contribution", SectionID: 4},
		{ID: 24, Label: "Gaming", SectionID: 4},
		{ID: 25, Label: "Vacation", SectionID: 4},
		{ID: 26, Label: "Trips", SectionID: 4},
		{ID: 27, Label: "Hairdresser", SectionID: 4},
		{ID: 28, Label: "Cosmetic", SectionID: 4},
		{ID: 29, Label: "Clothing", SectionID: 4},
		{ID: 30, Label: "Magazines and books", SectionID: 4},
		{ID: 31, Label: "Furniture", SectionID: 5},
		{ID: 32, Label: "Work materials", SectionID: 5},
		{ID: 33, Label: "Mailings", SectionID: 5},
		{ID: 34, Label: "Workwear", SectionID: 5},
		{ID: 35, Label: "Travel expenses", SectionID: 5},
		{ID: 36, Label: "Public transport", SectionID: 6},
		{ID: 37, Label: "Gas", SectionID: 6},
		{ID: 38, Label: "Car repairs", SectionID: 6},
		{ID: 39, Label: "Car care", SectionID: 6},
		{ID: 40, Label: "Vehicle tax", SectionID: 6},
		{ID: 41, Label: "Semester fees", SectionID: 7},
		{ID: 42, Label: "School fees", SectionID: 7},
		{ID: 43, Label: "Travel expenses", SectionID: 7},
		{ID: 44, Label: "Teaching aids", SectionID: 7},
		{ID: 45, Label: "Course fees", SectionID: 7},
		{ID: 46, Label: "Pension insurance", SectionID: 8},
		{ID: 47, Label: "Health insurance", SectionID: 8},
		{ID: 48, Label: "Liability insurance", SectionID: 8},
		{ID: 49, Label: "Car insurance", SectionID: 8},
		{ID: 50, Label: "Occupational disability insurance", SectionID: 8},
		{ID: 51, Label: "Accident insurance", SectionID: 8},
		{ID: 52, Label: "Term life insurance", SectionID: 8},
		{ID: 53, Label: "Home insurance", SectionID: 8},
		{ID: 54, Label: "Life insurance", SectionID: 8},
		{ID: 55, Label: "Loans", SectionID: 9},
		{ID: 56, Label: "Pocket Money", SectionID: 9},
		{ID: 57, Label: "Alimony", SectionID: 9},
		{ID: 58, Label: "Reserves", SectionID: 9},
		{ID: 59, Label: "Medical Expenses", SectionID: 10},
		{ID: 60, Label: "Bank Fees", SectionID: 10},
		{ID: 61, Label: "Tax consultancy", SectionID: 10},
		{ID: 62, Label: "Tax", SectionID: 10},
	}
}
