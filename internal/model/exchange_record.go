package model

// ExchangeRecord 问答记录的数据库镜像，便于教师端统计
type ExchangeRecord struct {
	BaseModel
	SessionID    string `gorm:"size:64;index" json:"sessionId"`
	Question     string `gorm:"type:text;not null" json:"question"`
	Answer       string `gorm:"type:text" json:"answer"`
	ContextLabel string `gorm:"size:255" json:"contextLabel"`
	HistoryFile  string `gorm:"size:255" json:"historyFile"`
}

func (ExchangeRecord) TableName() string {
	return "simulator_exchanges"
}
