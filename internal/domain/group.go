package domain

// ExpenseGroup is an ordered bucket of expense items inside a project.
// Display order is SortOrder ascending, ties broken by ID.
type ExpenseGroup struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProjectID int64  `gorm:"column:project_id;index;not null" json:"project_id"`
	Name      string `gorm:"column:name;size:255;not null" json:"name"`
	SortOrder int    `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
}

func (ExpenseGroup) TableName() string {
	return "expense_groups"
}
