package personalize

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Model is an immutable trained factorization of the user×job interaction
// matrix. Once built it is never mutated; retraining produces a new Model
// that the engine swaps in atomically.
type Model struct {
	factors     int
	userFactors map[uuid.UUID][]float64
	jobFactors  map[uuid.UUID][]float64
	trainedAt   time.Time
	eventCount  int
}

func (m *Model) TrainedAt() time.Time { return m.trainedAt }

// Predict returns the affinity rescaled into [0,100] and whether both sides
// were seen during training. Unseen user or job is the cold-start case and
// sends the caller to the fallback path.
func (m *Model) Predict(userID, jobID uuid.UUID) (float64, bool) {
	x, ok := m.userFactors[userID]
	if !ok {
		return 0, false
	}
	y, ok := m.jobFactors[jobID]
	if !ok {
		return 0, false
	}
	dot := 0.0
	for f := 0; f < m.factors; f++ {
		dot += x[f] * y[f]
	}
	// Implicit-feedback predictions approximate a preference in [0,1].
	s := dot * 100
	if s < 0 {
		s = 0
	}
	if s > 100 {
		s = 100
	}
	return s, true
}

// Interaction is one cell of the training matrix: the confidence-weighted
// strength of a user's interest in a job.
type Interaction struct {
	UserID     uuid.UUID
	JobID      uuid.UUID
	Confidence float64
}

type TrainConfig struct {
	Factors        int
	Iterations     int
	Regularization float64
	Alpha          float64
	Workers        int
}

// TrainALS fits the implicit-feedback ALS model of Hu, Koren and Volinsky
// (2008): minimize sum c_ui (p_ui - x_u·y_i)^2 + λ(Σ||x||² + Σ||y||²) with
// c_ui = 1 + α·r_ui, alternating closed-form solves for user and item
// factors. Initialization is deterministic so identical input yields an
// identical model.
func TrainALS(ctx context.Context, cfg TrainConfig, interactions []Interaction) (*Model, error) {
	if cfg.Factors <= 0 {
		cfg.Factors = 32
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 15
	}
	if cfg.Regularization <= 0 {
		cfg.Regularization = 0.01
	}
	if cfg.Alpha <= 0 {
		cfg.Alpha = 40
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	userIndex := make(map[uuid.UUID]int)
	jobIndex := make(map[uuid.UUID]int)
	var users, jobs []uuid.UUID
	for _, in := range interactions {
		if _, ok := userIndex[in.UserID]; !ok {
			userIndex[in.UserID] = len(users)
			users = append(users, in.UserID)
		}
		if _, ok := jobIndex[in.JobID]; !ok {
			jobIndex[in.JobID] = len(jobs)
			jobs = append(jobs, in.JobID)
		}
	}

	numUsers, numJobs, k := len(users), len(jobs), cfg.Factors
	model := &Model{
		factors:     k,
		userFactors: make(map[uuid.UUID][]float64, numUsers),
		jobFactors:  make(map[uuid.UUID][]float64, numJobs),
		trainedAt:   time.Now().UTC(),
		eventCount:  len(interactions),
	}
	if numUsers == 0 || numJobs == 0 {
		return model, nil
	}

	// Sparse confidence matrix, both orientations. Duplicate pairs keep the
	// highest confidence.
	userJobs := make(map[int]map[int]float64, numUsers)
	jobUsers := make(map[int]map[int]float64, numJobs)
	for _, in := range interactions {
		u, j := userIndex[in.UserID], jobIndex[in.JobID]
		conf := 1.0 + cfg.Alpha*in.Confidence
		if userJobs[u] == nil {
			userJobs[u] = make(map[int]float64)
		}
		if conf > userJobs[u][j] {
			userJobs[u][j] = conf
		}
		if jobUsers[j] == nil {
			jobUsers[j] = make(map[int]float64)
		}
		if conf > jobUsers[j][u] {
			jobUsers[j][u] = conf
		}
	}

	X := make([][]float64, numUsers)
	for u := range X {
		X[u] = make([]float64, k)
		for f := 0; f < k; f++ {
			X[u][f] = 0.1 * (float64((u*k+f)%1000)/1000.0 - 0.5)
		}
	}
	Y := make([][]float64, numJobs)
	for j := range Y {
		Y[j] = make([]float64, k)
		for f := 0; f < k; f++ {
			Y[j][f] = 0.1 * (float64((j*k+f)%1000)/1000.0 - 0.5)
		}
	}

	lambda := cfg.Regularization
	for iter := 0; iter < cfg.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		updateFactors(X, Y, userJobs, lambda, cfg.Workers)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		updateFactors(Y, X, jobUsers, lambda, cfg.Workers)
	}

	for u, id := range users {
		model.userFactors[id] = X[u]
	}
	for j, id := range jobs {
		model.jobFactors[id] = Y[j]
	}
	return model, nil
}

// updateFactors solves one half of the alternation: holding fixed constant,
// recompute every row of target from its observed confidences.
func updateFactors(target, fixed [][]float64, observed map[int]map[int]float64, lambda float64, workers int) {
	k := 0
	if len(fixed) > 0 {
		k = len(fixed[0])
	}

	// Gram matrix of the fixed side, shared by every row solve.
	gram := make([][]float64, k)
	for f := range gram {
		gram[f] = make([]float64, k)
	}
	for _, row := range fixed {
		for f1 := 0; f1 < k; f1++ {
			for f2 := f1; f2 < k; f2++ {
				gram[f1][f2] += row[f1] * row[f2]
				if f1 != f2 {
					gram[f2][f1] = gram[f1][f2]
				}
			}
		}
	}

	n := len(target)
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start, end := w*chunk, (w+1)*chunk
		if end > n {
			end = n
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for row := start; row < end; row++ {
				target[row] = solveRow(fixed, observed[row], gram, k, lambda)
			}
		}(start, end)
	}
	wg.Wait()
}

// solveRow computes one factor vector: x = (G + Σ(c-1)yy' + λI)⁻¹ Σ c·y,
// solved by Cholesky decomposition.
func solveRow(fixed [][]float64, obs map[int]float64, gram [][]float64, k int, lambda float64) []float64 {
	A := make([][]float64, k)
	for f := range A {
		A[f] = make([]float64, k)
		copy(A[f], gram[f])
		A[f][f] += lambda
	}

	b := make([]float64, k)
	for i, conf := range obs {
		y := fixed[i]
		cMinus1 := conf - 1.0
		for f1 := 0; f1 < k; f1++ {
			for f2 := f1; f2 < k; f2++ {
				delta := cMinus1 * y[f1] * y[f2]
				A[f1][f2] += delta
				if f1 != f2 {
					A[f2][f1] += delta
				}
			}
			b[f1] += conf * y[f1]
		}
	}

	return choleskySolve(A, b)
}

// choleskySolve solves A·x = b for symmetric positive-definite A.
func choleskySolve(A [][]float64, b []float64) []float64 {
	n := len(b)
	L := make([][]float64, n)
	for i := range L {
		L[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := A[i][j]
			for k := 0; k < j; k++ {
				sum -= L[i][k] * L[j][k]
			}
			if i == j {
				if sum <= 0 {
					sum = 1e-10
				}
				L[i][i] = math.Sqrt(sum)
			} else {
				L[i][j] = sum / L[j][j]
			}
		}
	}

	// Forward substitution: L·z = b
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for k := 0; k < i; k++ {
			sum -= L[i][k] * z[k]
		}
		z[i] = sum / L[i][i]
	}

	// Back substitution: L'·x = z
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := z[i]
		for k := i + 1; k < n; k++ {
			sum -= L[k][i] * x[k]
		}
		x[i] = sum / L[i][i]
	}
	return x
}
