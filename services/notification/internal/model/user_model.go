package model

// UserModel is the read-only view of the users table owned by the auth service.
type UserModel struct {
	ID       string `gorm:"column:id;type:varchar(64);primaryKey"`
	Username string `gorm:"column:username;type:varchar(255);not null"`
	Role     string `gorm:"column:role;type:varchar(50)"`
}

func (UserModel) TableName() string {
	return "users"
}
