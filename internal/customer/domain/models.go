package domain

type Customer struct {
	ID       string `gorm:"primaryKey;size:64" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"not null;uniqueIndex" json:"email"`
	ImageURL string `gorm:"column:image_url;not null;default:''" json:"image_url"`
}

func (Customer) TableName() string {
	return "customers"
}
