package utils

import (
	"github.com/meysamhadeli/codechat/backend/models"
	"github.com/meysamhadeli/codechat/constants/lipgloss"
	"github.com/pterm/pterm"
)

// FileTreeNodes converts the backend tree into pterm nodes, directories first.
// Paths in highlight are marked so relevant files stand out.
func FileTreeNodes(root *models.FileTreeNode, highlight []string) pterm.TreeNode {
	marked := make(map[string]bool, len(highlight))
	for _, path := range highlight {
		marked[path] = true
	}
	return toTreeNode(root, marked)
}

func toTreeNode(node *models.FileTreeNode, marked map[string]bool) pterm.TreeNode {
	text := node.Name
	switch {
	case node.IsDir():
		text = lipgloss.BlueSky.Render(node.Name + "/")
	case marked[node.Path]:
		text = lipgloss.Green.Render(node.Name + " *")
	}

	treeNode := pterm.TreeNode{Text: text}
	for _, child := range node.SortedChildren() {
		treeNode.Children = append(treeNode.Children, toTreeNode(child, marked))
	}
	return treeNode
}

// RenderFileTree draws the tree the way /tree prints it.
func RenderFileTree(root *models.FileTreeNode, highlight []string) (string, error) {
	if root == nil {
		return lipgloss.Yellow.Render("No file tree available."), nil
	}
	return pterm.DefaultTree.WithRoot(FileTreeNodes(root, highlight)).Srender()
}
