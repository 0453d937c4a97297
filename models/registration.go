package models

// RegistrationForm is the multi-step supplier sign-up payload. It is the
// largest form in either back-office and the main user of draft persistence:
// every step is autosaved under the "registration_draft" key.
type RegistrationForm struct {
	Step int `json:"step"`

	// step 1 - account
	Username string `json:"username" binding:"required_if=Step 1"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone"`

	// step 2 - business
	BusinessName    string `json:"business_name"`
	BusinessNumber  string `json:"business_number"`
	BusinessAddress string `json:"business_address"`
	Category        string `json:"category"`

	// step 3 - payout
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
}
