package analytics

// IngestResult is the decoded body of a successful upload.
type IngestResult struct {
	Message   string   `json:"message"`
	Locations []string `json:"locations"`
}

// AnalyzeResult is the decoded body of a successful query.
type AnalyzeResult struct {
	Summary   string   `json:"summary"`
	ChartData []Record `json:"chart_data"`
	TableData []Record `json:"table_data"`
	Locations []string `json:"locations"`
}

// ExportResult carries the CSV payload and the filename suggested by the
// service. Filename may be empty.
type ExportResult struct {
	CSVData  string `json:"csv_data"`
	Filename string `json:"filename"`
}

// Well-known keys of chart_data and table_data records.
const (
	KeyYear         = "year"
	KeyLocation     = "final location"
	KeyAveragePrice = "flat - weighted average rate"
	KeyTotalSales   = "total_sales - igr"
	KeyTotalUnits   = "total units"
)
