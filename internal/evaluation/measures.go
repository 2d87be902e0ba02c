package evaluation

// RecallLevels is the number of standard recall points, 0.0 to 1.0.
const RecallLevels = 11

// Curve holds precision at each standard recall level.
type Curve [RecallLevels]float64

// QueryRun is the ranked list of CACM ids retrieved for one query.
type QueryRun struct {
	QueryID   int   `json:"query_id"`
	Retrieved []int `json:"retrieved"`
}

// Run is the outcome of every query against one index.
type Run struct {
	Name    string     `json:"name"`
	Queries []QueryRun `json:"queries"`
}

// Stats are the per-query counts of the summary report.
type Stats struct {
	QueryID           int `json:"query_id"`
	Retrieved         int `json:"retrieved"`
	Relevant          int `json:"relevant"`
	RelevantRetrieved int `json:"relevant_retrieved"`
}

func ComputeStatistics(run Run, j *Judgments) []Stats {
	out := make([]Stats, len(run.Queries))
	for i, q := range run.Queries {
		s := Stats{QueryID: q.QueryID, Retrieved: len(q.Retrieved), Relevant: j.Count(q.QueryID)}
		for _, doc := range q.Retrieved {
			if j.IsRelevant(q.QueryID, doc) {
				s.RelevantRetrieved++
			}
		}
		out[i] = s
	}
	return out
}

// PrecisionAtRecallLevels walks the ranking and, at every relevant hit,
// assigns its precision to each standard level not yet reached whose recall
// it attains. Levels the ranking never reaches stay 0. A query without
// relevant docs scores 0 everywhere.
func PrecisionAtRecallLevels(retrieved []int, isRelevant func(doc int) bool, numRelevant int) Curve {
	var c Curve
	if numRelevant <= 0 {
		return c
	}
	hits, level := 0, 0
	for rank, doc := range retrieved {
		if !isRelevant(doc) {
			continue
		}
		hits++
		precision := float64(hits) / float64(rank+1)
		// level/10 <= hits/numRelevant, compared without rounding
		for level < RecallLevels && level*numRelevant <= hits*10 {
			c[level] = precision
			level++
		}
		if level == RecallLevels {
			break
		}
	}
	return c
}

// AveragePrecisionAtRecallLevels averages the curve of every query in run.
// Queries without judgments contribute zeros.
func AveragePrecisionAtRecallLevels(run Run, j *Judgments) Curve {
	var avg Curve
	if len(run.Queries) == 0 {
		return avg
	}
	for _, q := range run.Queries {
		c := PrecisionAtRecallLevels(q.Retrieved, isRelevantFunc(j, q.QueryID), j.Count(q.QueryID))
		for i := range avg {
			avg[i] += c[i]
		}
	}
	for i := range avg {
		avg[i] /= float64(len(run.Queries))
	}
	return avg
}

// AveragePrecision is the mean of the precision at each relevant hit over
// all numRelevant docs, so relevant docs never retrieved count as 0.
func AveragePrecision(retrieved []int, isRelevant func(doc int) bool, numRelevant int) float64 {
	if numRelevant <= 0 {
		return 0
	}
	hits := 0
	sum := 0.0
	for rank, doc := range retrieved {
		if isRelevant(doc) {
			hits++
			sum += float64(hits) / float64(rank+1)
		}
	}
	return sum / float64(numRelevant)
}

// MeanAveragePrecision averages AveragePrecision over every query in run.
func MeanAveragePrecision(run Run, j *Judgments) float64 {
	if len(run.Queries) == 0 {
		return 0
	}
	sum := 0.0
	for _, q := range run.Queries {
		sum += AveragePrecision(q.Retrieved, isRelevantFunc(j, q.QueryID), j.Count(q.QueryID))
	}
	return sum / float64(len(run.Queries))
}

func isRelevantFunc(j *Judgments, query int) func(int) bool {
	return func(doc int) bool { return j.IsRelevant(query, doc) }
}
