package tables

import (
	"go-ml.dev/pkg/zorros"
	"golang.org/x/exp/rand"
	"math"
)

// DefaultTestSize is the share of rows going to the test subset
const DefaultTestSize = 0.25

/*
SplitIndices shuffles row indices 0..n-1 with a PRNG seeded by seed and
partitions them into train and test, test gets ceil(testSize*n) rows
*/
func SplitIndices(n int, seed uint64, testSize float64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 || math.IsNaN(testSize) {
		return nil, nil, zorros.Errorf("test size must be in (0,1), got %v", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTrain <= 0 || nTest <= 0 {
		return nil, nil, zorros.Errorf("can't split %d rows with test size %v", n, testSize)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

/*
TrainTestSplit partitions rows into disjoint train and test tables
*/
func (t *Table) TrainTestSplit(seed uint64, testSize float64) (train, test *Table, err error) {
	tr, ts, err := SplitIndices(t.length, seed, testSize)
	if err != nil {
		return nil, nil, err
	}
	return t.Take(tr), t.Take(ts), nil
}
