package models

// InventoryRow 抓取库存数据中的一行（只读）
type InventoryRow struct {
	Chassis   string `json:"chassis" db:"chassis"`
	Plate     string `json:"plate" db:"plate"`
	Brand     string `json:"brand" db:"brand"`
	Model     string `json:"model" db:"model"`
	Color     string `json:"color" db:"color"`
	Bodywork  string `json:"bodywork" db:"bodywork"`
	ECode     string `json:"e_code" db:"e_code"`
	MotorType string `json:"motor_type" db:"motor_type"` // 原始动力描述
	Fuel      string `json:"fuel" db:"fuel"`             // 原始燃料描述
}

// SalesRow 销售数据中的一行（只读）
type SalesRow struct {
	Plate string `json:"plate" db:"plate"`
}
