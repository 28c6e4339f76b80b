package enums

// UserRole is carried in access tokens and checked by staff-only routes.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleStaff    UserRole = "staff"
)

func (r UserRole) IsValid() bool {
	return r == UserRoleCustomer || r == UserRoleStaff
}

// RoleForStaffFlag maps the users.is_staff column onto a token role.
func RoleForStaffFlag(isStaff bool) UserRole {
	if isStaff {
		return UserRoleStaff
	}
	return UserRoleCustomer
}
