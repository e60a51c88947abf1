package model

// Roles accepted at registration.
const (
	RoleWorker   = "worker"
	RoleEmployer = "employer"
)

// JobStatusOpen is the status of a freshly posted job.
const JobStatusOpen = "open"

// WorkHistoryStatusVerified marks entries backed by an anchored attestation.
const WorkHistoryStatusVerified = "verified"

// UserRecord is the registration payload anchored for every user.
// PhoneNumber and PreferredRoles are spellings used by older records.
type UserRecord struct {
	Name           string    `json:"name"`
	Phone          string    `json:"phone,omitempty"`
	PhoneNumber    string    `json:"phoneNumber,omitempty"`
	County         string    `json:"county"`
	Role           string    `json:"role"`
	PINHash        string    `json:"pinHash"`
	PublicKey      string    `json:"publicKey"`
	WorkTypes      []string  `json:"workTypes,omitempty"`
	PreferredRoles []string  `json:"preferred_roles,omitempty"`
	CreatedAt      Time      `json:"createdAt"`
}

// Normalize folds legacy field spellings into the current ones.
func (u UserRecord) Normalize() UserRecord {
	if u.Phone == "" {
		u.Phone = u.PhoneNumber
	}
	u.PhoneNumber = ""
	if len(u.WorkTypes) == 0 {
		u.WorkTypes = u.PreferredRoles
	}
	u.PreferredRoles = nil
	return u
}

// Public returns the projection safe to expose over the API.
func (u UserRecord) Public() PublicUser {
	u = u.Normalize()
	return PublicUser{
		PublicKey: u.PublicKey,
		Role:      u.Role,
		Name:      u.Name,
		Phone:     u.Phone,
		County:    u.County,
		WorkTypes: u.WorkTypes,
		CreatedAt: u.CreatedAt,
	}
}

// PublicUser is a user without credentials.
type PublicUser struct {
	PublicKey string    `json:"publicKey"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	County    string    `json:"county"`
	WorkTypes []string  `json:"workTypes,omitempty"`
	CreatedAt Time      `json:"createdAt,omitzero"`
}

// JobRecord is a job posting.
type JobRecord struct {
	ID           string    `json:"id"`
	EmployerID   string    `json:"employerId"`
	EmployerName string    `json:"employerName"`
	Title        string    `json:"title"`
	WorkType     string    `json:"workType"`
	Description  string    `json:"description"`
	Location     string    `json:"location"`
	Salary       string    `json:"salary,omitempty"`
	IsLiveIn     bool      `json:"isLiveIn"`
	CreatedAt    Time      `json:"createdAt"`
	Status       string    `json:"status"`
}

// AttestationRecord is an employer-authored statement about a service period.
type AttestationRecord struct {
	Employer    string    `json:"employer"`
	Employee    string    `json:"employee"`
	WorkType    string    `json:"workType"`
	StartDate   string    `json:"startDate"`
	EndDate     string    `json:"endDate"`
	Description string    `json:"description"`
	Timestamp   Time      `json:"timestamp"`
	EmployeePK  string    `json:"employee_pk,omitempty"`
}

// Normalize folds the legacy employee_pk spelling into Employee.
func (a AttestationRecord) Normalize() AttestationRecord {
	if a.Employee == "" {
		a.Employee = a.EmployeePK
	}
	a.EmployeePK = ""
	return a
}

// WorkHistoryRecord is derived from an attestation and shown on worker profiles.
type WorkHistoryRecord struct {
	Employee       string          `json:"employee"`
	Employer       string          `json:"employer"`
	Position       string          `json:"position"`
	StartDate      string          `json:"startDate"`
	EndDate        string          `json:"endDate"`
	Description    string          `json:"description"`
	AttestationCID string          `json:"attestationCID"`
	NFTResult      *CertificateRef `json:"nftResult"`
	Timestamp      Time            `json:"timestamp"`
	Status         string          `json:"status"`
}
