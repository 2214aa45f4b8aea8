package grc

// Role is a user's organisational role. Authorization decisions are made only against these values.
type Role string

const (
	SuperAdmin        Role = "SuperAdmin"
	AuditManager      Role = "AuditManager"
	ComplianceOfficer Role = "ComplianceOfficer"
	ControlOwner      Role = "ControlOwner"
	Implementer       Role = "Implementer"
	RiskManager       Role = "RiskManager"
	DepartmentHead    Role = "DepartmentHead"
	Employee          Role = "Employee"
)

// Roles lists every role in declaration order.
var Roles = []Role{SuperAdmin, AuditManager, ComplianceOfficer, ControlOwner, Implementer, RiskManager, DepartmentHead, Employee}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	for _, x := range Roles {
		if x == r {
			return true
		}
	}
	return false
}

// RoleSet is a route's allow-list. A nil set admits any authenticated user.
type RoleSet []Role

// Allowed reports whether role may pass a gate guarded by set.
func Allowed(role Role, set RoleSet) bool {
	if set == nil {
		return true
	}
	for _, r := range set {
		if r == role {
			return true
		}
	}
	return false
}

// Resource names one API endpoint group.
type Resource string

const (
	Assets     Resource = "assets"
	Risks      Resource = "risks"
	Controls   Resource = "controls"
	Frameworks Resource = "frameworks"
	Policies   Resource = "policies"
	Evidence   Resource = "evidence"
	Audits     Resource = "audits"
	BCM        Resource = "bcm"
	Users      Resource = "users"
)

// Resources is every CRUD resource that appears in Access.
var Resources = []Resource{Assets, Risks, Controls, Frameworks, Policies, Evidence, Audits, BCM}

// Permissions holds the allow-list for each mutating action of a resource.
// Reads are open to every authenticated user.
type Permissions struct {
	Create RoleSet
	Update RoleSet
	Delete RoleSet
}

var (
	riskEditors       = RoleSet{SuperAdmin, RiskManager, ComplianceOfficer}
	complianceEditors = RoleSet{SuperAdmin, ComplianceOfficer}
	evidenceReviewers = RoleSet{SuperAdmin, AuditManager, ComplianceOfficer}
	auditEditors      = RoleSet{SuperAdmin, AuditManager}
	assetEditors      = RoleSet{SuperAdmin, ComplianceOfficer, RiskManager} // stands in for ITManager, SecurityOfficer
	controlEditors    = RoleSet{SuperAdmin, ComplianceOfficer, ControlOwner}
	continuityEditors = RoleSet{SuperAdmin, RiskManager, DepartmentHead} // stands in for BCMManager
)

// Access is the route guard table. Evidence creation is open to any authenticated user.
var Access = map[Resource]Permissions{
	Assets:     {Create: assetEditors, Update: assetEditors, Delete: assetEditors},
	Risks:      {Create: riskEditors, Update: riskEditors, Delete: RoleSet{SuperAdmin, RiskManager}},
	Controls:   {Create: controlEditors, Update: controlEditors, Delete: controlEditors},
	Frameworks: {Create: complianceEditors, Update: complianceEditors, Delete: complianceEditors},
	Policies:   {Create: complianceEditors, Update: complianceEditors, Delete: complianceEditors},
	Evidence:   {Create: nil, Update: evidenceReviewers, Delete: evidenceReviewers},
	Audits:     {Create: auditEditors, Update: auditEditors, Delete: auditEditors},
	BCM:        {Create: continuityEditors, Update: continuityEditors, Delete: continuityEditors},
}

// UserDirectoryReaders may list users and view any profile.
var UserDirectoryReaders = RoleSet{SuperAdmin, AuditManager, ComplianceOfficer}

// UserAdmins may edit or remove other users.
var UserAdmins = RoleSet{SuperAdmin}
