package model

// Roles carried in the JWT "role" claim.
const (
    RoleClient   = "client"
    RoleOperator = "operator"
    RoleAdmin    = "admin"
)

// Person is the display data of a user referenced by reservations and
// closures.  Credentials are managed elsewhere and never stored here.
type Person struct {
    ID       uint64
    Username string
    Name     string
    Role     string
    Contact  *string
}
