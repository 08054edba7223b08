package model

// SectorFlow 单个板块的资金流摘要
type SectorFlow struct {
	Sector        string  `json:"sector"`
	NetInflow     float64 `json:"net_inflow"` // 亿元
	Rank          int     `json:"rank"`
	PrevRank      int     `json:"prev_rank"`
	ChangePercent float64 `json:"change_percent"`
}

// Sectors 读取板块资金流表字段（键名约定为 sectors）
func (e RawMarketEvent) Sectors() []SectorFlow {
	if sectors, ok := e.Data["sectors"].([]SectorFlow); ok {
		return sectors
	}
	return nil
}
