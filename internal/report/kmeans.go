package report

import (
	"math"
	"math/rand"
)

const kmeansMaxIterations = 100

// kmeans clusters vectors into k groups with Lloyd's algorithm, restarted
// `restarts` times from seeded random initializations; the assignment with
// the lowest inertia wins. Deterministic for a fixed seed.
func kmeans(vectors [][]float32, k int, seed int64, restarts int) []int {
	n := len(vectors)
	if n == 0 {
		return nil
	}
	if k >= n {
		// Degenerate case: every vector is its own cluster.
		assign := make([]int, n)
		for i := range assign {
			assign[i] = i
		}
		return assign
	}
	if k <= 1 {
		return make([]int, n)
	}

	rng := rand.New(rand.NewSource(seed))
	dim := len(vectors[0])

	var best []int
	bestInertia := math.Inf(1)

	for r := 0; r < restarts; r++ {
		centroids := initCentroids(rng, vectors, k)
		assign := make([]int, n)

		for iter := 0; iter < kmeansMaxIterations; iter++ {
			changed := false
			for i, v := range vectors {
				c := nearestCentroid(v, centroids)
				if c != assign[i] {
					assign[i] = c
					changed = true
				}
			}
			recomputeCentroids(centroids, vectors, assign, dim)
			if !changed && iter > 0 {
				break
			}
		}

		inertia := 0.0
		for i, v := range vectors {
			inertia += squaredDistance(v, centroids[assign[i]])
		}
		if inertia < bestInertia {
			bestInertia = inertia
			best = assign
		}
	}

	return best
}

// initCentroids picks k distinct vectors as starting centroids.
func initCentroids(rng *rand.Rand, vectors [][]float32, k int) [][]float64 {
	perm := rng.Perm(len(vectors))
	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		v := vectors[perm[i]]
		c := make([]float64, len(v))
		for j, x := range v {
			c[j] = float64(x)
		}
		centroids[i] = c
	}
	return centroids
}

func nearestCentroid(v []float32, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := squaredDistance(v, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// recomputeCentroids averages each cluster's members in place. An emptied
// cluster keeps its previous centroid.
func recomputeCentroids(centroids [][]float64, vectors [][]float32, assign []int, dim int) {
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	for i, v := range vectors {
		c := assign[i]
		counts[c]++
		for j, x := range v {
			sums[c][j] += float64(x)
		}
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for j := range centroids[c] {
			centroids[c][j] = sums[c][j] / float64(counts[c])
		}
	}
}

func squaredDistance(v []float32, c []float64) float64 {
	var sum float64
	for i, x := range v {
		d := float64(x) - c[i]
		sum += d * d
	}
	return sum
}

// cosineSimilarity over two raw vectors; 0 when either has zero norm.
func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
