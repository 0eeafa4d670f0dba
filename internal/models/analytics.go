package models

// DailyPerformance compares one UTC day's production with the weather-adjusted expectation.
type DailyPerformance struct {
	Date             string  `json:"date"`
	Readings         int     `json:"readings"`
	ActualKWh        float64 `json:"actualKWh"`
	ExpectedKWh      float64 `json:"expectedKWh"`
	WeatherScore     float64 `json:"weatherScore"`
	WeatherRating    string  `json:"weatherRating"`
	PerformanceRatio int     `json:"performanceRatio"`
}

// PerformanceReport is the weather-adjusted performance of a unit over a window.
type PerformanceReport struct {
	UnitID           string             `json:"unitId"`
	Days             int                `json:"days"`
	CapacityW        float64            `json:"capacityW"`
	Daily            []DailyPerformance `json:"daily"`
	AverageRatio     float64            `json:"averageRatio"`
	BestDay          *DailyPerformance  `json:"bestDay,omitempty"`
	WorstDay         *DailyPerformance  `json:"worstDay,omitempty"`
	TotalActualKWh   float64            `json:"totalActualKWh"`
	TotalExpectedKWh float64            `json:"totalExpectedKWh"`
}

// GroupCount is one bucket of a grouped finding count.
type GroupCount struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DailyCount is the number of findings detected on a UTC day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DistributionReport groups a unit's findings over a window.
type DistributionReport struct {
	UnitID     string       `json:"unitId"`
	Days       int          `json:"days"`
	Total      int          `json:"total"`
	ByType     []GroupCount `json:"byType"`
	BySeverity []GroupCount `json:"bySeverity"`
	ByStatus   []GroupCount `json:"byStatus"`
	Trend      []DailyCount `json:"trend"`
}

// HealthFactors are the 0-100 inputs of the composite health score plus the
// raw counts they were derived from.
type HealthFactors struct {
	AnomalyScore        float64 `json:"anomalyScore"`
	PerformanceScore    float64 `json:"performanceScore"`
	UptimePercentage    float64 `json:"uptimePercentage"`
	ResolutionScore     float64 `json:"resolutionScore"`
	CriticalCount       int     `json:"criticalCount"`
	WarningCount        int     `json:"warningCount"`
	DaysWithCritical    int     `json:"daysWithCritical"`
	ResolvedCount       int     `json:"resolvedCount"`
	MeanResolutionHours float64 `json:"meanResolutionHours"`
	PerformanceDefault  bool    `json:"performanceDefault"`
}

// HealthReport is the system health score of a unit.
type HealthReport struct {
	UnitID          string        `json:"unitId"`
	Days            int           `json:"days"`
	Score           int           `json:"score"`
	Rating          string        `json:"rating"`
	Factors         HealthFactors `json:"factors"`
	Recommendations []string      `json:"recommendations"`
}
