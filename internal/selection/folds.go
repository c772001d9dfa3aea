package selection

// StratifiedFolds assigns rows to k folds, dealing each class round-robin in
// row order so every fold receives a near-equal share of both labels. It
// returns the test rows of each fold.
func StratifiedFolds(y []int, k int) [][]int {
	folds := make([][]int, k)
	next := map[int]int{}
	for i, label := range y {
		f := next[label] % k
		next[label]++
		folds[f] = append(folds[f], i)
	}
	return folds
}

// complement returns the rows in [0, n) not present in test.
func complement(n int, test []int) []int {
	in := make([]bool, n)
	for _, i := range test {
		in[i] = true
	}
	train := make([]int, 0, n-len(test))
	for i := 0; i < n; i++ {
		if !in[i] {
			train = append(train, i)
		}
	}
	return train
}
