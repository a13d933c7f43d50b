package memory

import "fmt"

// splitChunks cuts content into overlapping windows of at most size
// characters, with overlap characters shared between consecutive chunks.
// Order is preserved through Position; the final partial window is kept.
func splitChunks(recordID, content string, size, overlap int) []Chunk {
	if size <= 0 || len(content) <= size {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	step := size - overlap
	var chunks []Chunk
	for start, pos := 0, 0; start < len(content); start, pos = start+step, pos+1 {
		end := start + size
		if end > len(content) {
			end = len(content)
		}
		chunks = append(chunks, Chunk{
			ID:       fmt.Sprintf("%s#%d", recordID, pos),
			RecordID: recordID,
			Position: pos,
			Content:  content[start:end],
		})
		if end == len(content) {
			break
		}
	}
	return chunks
}
