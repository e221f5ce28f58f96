// Command mnemobench runs the LoCoMo retrieval-quality benchmark against
// a memory service: ingest a conversation dataset, evaluate a retrieval
// strategy against its annotated questions, and report F1/BLEU-1 scores
// against published baselines.
package main

func main() {
	Execute()
}
