package chunking

import (
	"encoding/json"
	"fmt"
	"os"
)

// CaseRecord is one court decision as loaded from the source dataset. The JSON
// field names follow the Korean national law information service export format.
// Records are immutable once loaded.
type CaseRecord struct {
	SerialNumber    string `json:"판례정보일련번호"`
	CaseName        string `json:"사건명"`
	CaseNumber      string `json:"사건번호"`
	DecisionDate    string `json:"선고일자"`
	CourtName       string `json:"법원명"`
	CaseType        string `json:"사건종류명"`
	RulingType      string `json:"판결유형"`
	Holding         string `json:"판시사항"`
	RefStatutes     string `json:"참조조문"`
	RefPrecedents   string `json:"참조판례"`
	FullText        string `json:"전문"`
	JudgmentSummary string `json:"판결요지"`
}

// ChunkMetadata carries the record fields stored alongside each vector so
// search hits can be rendered without a second lookup. Known fields are typed;
// anything else the source provides passes through Extra.
type ChunkMetadata struct {
	Text          string `json:"text"`
	ChunkType     string `json:"chunk_type"`
	ChunkIndex    int    `json:"chunk_idx"`
	SerialNumber  string `json:"판례정보일련번호"`
	CaseName      string `json:"사건명"`
	CaseNumber    string `json:"사건번호"`
	DecisionDate  string `json:"선고일자"`
	CourtName     string `json:"법원명"`
	CaseType      string `json:"사건종류명"`
	RulingType    string `json:"판결유형"`
	Holding       string `json:"판시사항"`
	RefStatutes   string `json:"참조조문"`
	RefPrecedents string `json:"참조판례"`

	Extra map[string]string `json:"extra,omitempty"`
}

// ChunkEntry is one bounded text segment ready for embedding and upsert.
// ChunkIndex values are contiguous from 0 within a (SourceID, ChunkType) pair.
type ChunkEntry struct {
	SourceID   string        `json:"source_id"`
	ChunkType  string        `json:"chunk_type"`
	ChunkIndex int           `json:"chunk_idx"`
	Text       string        `json:"text"`
	Metadata   ChunkMetadata `json:"meta"`
}

// ChunkTypeJudgmentSummary is the chunk type for segments of the 판결요지 field,
// the only field the ingestion path chunks; everything else rides as metadata.
const ChunkTypeJudgmentSummary = "판결요지"

// LoadCaseRecords reads a JSON array of case records from path.
func LoadCaseRecords(path string) ([]CaseRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case records: %w", err)
	}

	var records []CaseRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse case records: %w", err)
	}
	return records, nil
}

// baseMetadata copies the record fields that accompany every chunk. Missing
// values stay empty strings so the vector store never sees nulls.
func baseMetadata(rec CaseRecord) ChunkMetadata {
	return ChunkMetadata{
		SerialNumber:  rec.SerialNumber,
		CaseName:      rec.CaseName,
		CaseNumber:    rec.CaseNumber,
		DecisionDate:  rec.DecisionDate,
		CourtName:     rec.CourtName,
		CaseType:      rec.CaseType,
		RulingType:    rec.RulingType,
		Holding:       rec.Holding,
		RefStatutes:   rec.RefStatutes,
		RefPrecedents: rec.RefPrecedents,
	}
}
